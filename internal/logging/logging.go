package logging

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// EnableDebug turns on verbose debug logging for the application lifecycle.
func EnableDebug() {
	debugEnabled.Store(true)
	log.Printf("[DEBUG] debug logging enabled")
}

// DebugEnabled reports whether debug logging is active.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Debugf emits a formatted debug log message when debugging is enabled.
func Debugf(format string, args ...interface{}) {
	if !DebugEnabled() {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

// Info emits msg followed by key=value pairs. Values stored under sensitive
// keys (password, secret, token, ...) are masked before they reach the log.
func Info(msg string, kv ...interface{}) {
	log.Print(Format(msg, kv...))
}

// Debug is the key=value variant of Debugf.
func Debug(msg string, kv ...interface{}) {
	if !DebugEnabled() {
		return
	}
	log.Print("[DEBUG] " + Format(msg, kv...))
}

// Format renders msg and its key=value pairs on one line. A trailing key
// without a value is rendered as key=<missing>.
func Format(msg string, kv ...interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for idx := 0; idx < len(kv); idx += 2 {
		key := fmt.Sprint(kv[idx])
		value := "<missing>"
		if idx+1 < len(kv) {
			value = fmt.Sprint(kv[idx+1])
		}
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(sanitizeSensitiveValue(key, value))
	}
	return b.String()
}

func isSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "password"),
		strings.Contains(lower, "secret"),
		strings.Contains(lower, "nonce"),
		strings.Contains(lower, "token"):
		return true
	default:
		return false
	}
}

func sanitizeSensitiveValue(name, value string) string {
	if value == "" {
		return value
	}
	if isSensitiveKey(name) {
		return MaskIdentifier(value)
	}
	return value
}

// MaskIdentifier obscures sensitive identifiers leaving only the last four characters visible.
func MaskIdentifier(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(trimmed)-4) + trimmed[len(trimmed)-4:]
}
