package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/rkvm-client/internal/ipc"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"RKVM_CONFIG_PATH", "RKVM_PASSWORD", "RKVM_ACTIVE_SOCKET", "RKVM_SERVER"} {
		t.Setenv(key, "")
	}
}

func TestPathHonoursEnvironment(t *testing.T) {
	clearEnv(t)
	if got := Path(); got != DefaultPath {
		t.Fatalf("Path() = %q", got)
	}
	t.Setenv("RKVM_CONFIG_PATH", "/tmp/rkvm.yaml")
	if got := Path(); got != "/tmp/rkvm.yaml" {
		t.Fatalf("Path() = %q", got)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "client.yaml")
	doc := "server: kvm.local:5258\ncertificate: /etc/rkvm/ca.pem\npassword: hunter2\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ActiveSocket != ipc.DefaultSocketPath {
		t.Errorf("ActiveSocket = %q", cfg.ActiveSocket)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
	if cfg.MetricsAddress != "" || cfg.Debug {
		t.Errorf("unexpected optional fields: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseReadsEveryField(t *testing.T) {
	clearEnv(t)
	doc := `
server: 10.0.0.2:5258
certificate: ca.pem
password: pw
active_socket: /tmp/active.sock
metrics_address: 127.0.0.1:9120
reconnect_delay: 250ms
debug: true
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Config{
		Server:         "10.0.0.2:5258",
		Certificate:    "ca.pem",
		Password:       "pw",
		ActiveSocket:   "/tmp/active.sock",
		MetricsAddress: "127.0.0.1:9120",
		ReconnectDelay: 250 * time.Millisecond,
		Debug:          true,
	}
	if *cfg != want {
		t.Fatalf("Parse() = %+v, want %+v", *cfg, want)
	}
	if got := cfg.ActiveEndpoint().Address; got != "/tmp/active.sock" {
		t.Fatalf("ActiveEndpoint() = %q", got)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RKVM_SERVER", "other:1")
	t.Setenv("RKVM_PASSWORD", "from-env")
	t.Setenv("RKVM_ACTIVE_SOCKET", "/tmp/env.sock")

	cfg, err := Parse([]byte("server: kvm:5258\npassword_file: /does/not/exist\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server != "other:1" || cfg.Password != "from-env" || cfg.ActiveSocket != "/tmp/env.sock" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestPasswordFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Parse([]byte("password_file: " + path + "\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Password != "s3cret" {
		t.Fatalf("Password = %q", cfg.Password)
	}

	if _, err := Parse([]byte("password_file: " + path + ".missing\n")); err == nil {
		t.Fatalf("expected error for missing password file")
	}
}

func TestCompiledPasswordFallback(t *testing.T) {
	clearEnv(t)
	old := CompiledPassword
	CompiledPassword = "embedded"
	defer func() { CompiledPassword = old }()

	cfg, err := Parse([]byte("server: kvm:5258\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Password != "embedded" {
		t.Fatalf("Password = %q", cfg.Password)
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		server  string
		host    string
		port    uint16
		wantErr bool
	}{
		{"kvm.local:5258", "kvm.local", 5258, false},
		{"[::1]:65535", "::1", 65535, false},
		{"", "", 0, true},
		{"kvm.local", "", 0, true},
		{":5258", "", 0, true},
		{"kvm:0", "", 0, true},
		{"kvm:70000", "", 0, true},
		{"kvm:abc", "", 0, true},
	}
	for _, tt := range tests {
		host, port, err := (&Config{Server: tt.server}).Target()
		if (err != nil) != tt.wantErr {
			t.Errorf("Target(%q) error = %v, wantErr %v", tt.server, err, tt.wantErr)
			continue
		}
		if host != tt.host || port != tt.port {
			t.Errorf("Target(%q) = %q, %d", tt.server, host, port)
		}
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := (&Config{}).Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server", "certificate", "password"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
