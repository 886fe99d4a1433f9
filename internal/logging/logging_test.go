package logging

import "testing"

func TestFormatMasksSensitiveKeys(t *testing.T) {
	got := Format("connecting", "server", "kvm.local:5258", "password", "hunter2-secret")
	want := "connecting server=kvm.local:5258 password=**********cret"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestFormatMissingValue(t *testing.T) {
	got := Format("device", "id")
	if got != "device id=<missing>" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestMaskIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"abc", "****"},
		{"abcd", "****"},
		{"abcdef", "**cdef"},
	}
	for _, tt := range tests {
		if got := MaskIdentifier(tt.in); got != tt.want {
			t.Errorf("MaskIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDebugGate(t *testing.T) {
	if DebugEnabled() {
		t.Fatalf("debug should start disabled")
	}
	EnableDebug()
	if !DebugEnabled() {
		t.Fatalf("debug should be enabled")
	}
}
