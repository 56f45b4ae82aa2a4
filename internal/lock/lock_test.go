package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "mirror.pid")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock: %v", err)
	}
	if want := strconv.Itoa(os.Getpid()) + "\n"; string(data) != want {
		t.Errorf("lock content = %q, want %q", data, want)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be removed")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.pid")

	// The parent of the test binary is alive for the whole test.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Acquire(path)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Acquire() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestAcquire_StaleFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "not a pid"},
		{name: "dead pid", content: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mirror.pid")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			lock, err := Acquire(path)
			if err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			defer lock.Release()

			if lock.Path() != path {
				t.Errorf("Path() = %q, want %q", lock.Path(), path)
			}
		})
	}
}
