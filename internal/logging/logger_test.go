package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewStdout(t *testing.T) {
	logger, closer, err := New(Config{Level: "debug", Output: "stdout"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if closer != nil {
		t.Fatalf("expected nil closer for stdout, got %v", closer)
	}
	logger.Info("test message")
}

func TestNewFileRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enc.log")
	logger, closer, err := New(Config{Level: "info", Output: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if closer == nil {
		t.Fatal("expected non-nil closer for file output")
	}
	logger.Info("hello")
	if err := logger.Sync(); err != nil {
		t.Logf("sync: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestGlobalSetAndRestore(t *testing.T) {
	orig := Global()
	defer SetGlobal(orig)

	logger, _, err := New(Config{Level: "warn", Output: "stderr"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	SetGlobal(logger)
	if Global() != logger {
		t.Fatal("Global did not return the logger set via SetGlobal")
	}
	Info("ignored at warn level")
	Warn("visible")
}
