package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})
	log.WithField("document_number", "2025-01234").Info("saved plain text")

	out := buf.String()
	if !strings.Contains(out, "saved plain text") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "document_number=2025-01234") {
		t.Errorf("expected field in output, got %q", out)
	}
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	log := New(Config{Level: "loud", Output: &bytes.Buffer{}})
	if log.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level, got %v", log.GetLevel())
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eosync.log")
	log := New(Config{Level: "debug", File: path, Output: &bytes.Buffer{}})
	log.Debug("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("expected message in log file, got %q", data)
	}
}
