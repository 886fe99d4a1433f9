package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultEndpointHonoursEnvironment(t *testing.T) {
	t.Setenv("RKVM_ACTIVE_SOCKET", "")
	if got := DefaultEndpoint(); got.Address != DefaultSocketPath || got.Network != "unix" {
		t.Fatalf("unexpected default endpoint: %+v", got)
	}

	t.Setenv("RKVM_ACTIVE_SOCKET", "  /tmp/custom.sock ")
	if got := DefaultEndpoint(); got.Address != "/tmp/custom.sock" {
		t.Fatalf("override ignored: %+v", got)
	}
}

func TestListenCreatesDirectoryAndReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "active.sock")
	endpoint := UnixEndpoint(path)

	first, err := endpoint.Listen()
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	// Simulate a crashed process: the listener is gone but the file stays.
	if ul, ok := first.(interface{ SetUnlinkOnClose(bool) }); ok {
		ul.SetUnlinkOnClose(false)
	}
	first.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected stale socket file to remain: %v", err)
	}

	second, err := endpoint.Listen()
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	defer second.Close()

	conn, err := endpoint.DialContext(context.Background())
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	conn.Close()
}

func TestCleanupRemovesSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	UnixEndpoint(path).Cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket file still present: %v", err)
	}
}

func TestEndpointString(t *testing.T) {
	if got := UnixEndpoint("/run/x.sock").String(); got != "unix:///run/x.sock" {
		t.Fatalf("String() = %q", got)
	}
}
