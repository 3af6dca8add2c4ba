package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wsshell/internel/engine"
)

func TestParseConfigLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "client.toml")
	content := "server = \"files.example.com\"\nchunk = 1024\nmode = \"whole\"\ntimeout = \"30s\"\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WSSHELL_DEST", "/tmp/dl")

	conf, err := ParseConfig([]string{"--config", file, "-o", "9", "--sid", "hw1", "--chunk", "2048"})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if conf.Server != "files.example.com" {
		t.Errorf("Server = %q, want value from file", conf.Server)
	}
	if conf.Dest != "/tmp/dl" {
		t.Errorf("Dest = %q, want value from env", conf.Dest)
	}
	if conf.Chunk != 2048 {
		t.Errorf("Chunk = %d, flag should win over file", conf.Chunk)
	}
	if conf.Operator != "9" || conf.SID != "hw1" {
		t.Errorf("Operator, SID = %q, %q", conf.Operator, conf.SID)
	}

	cfg := conf.EngineConfig()
	if cfg.ChunkSize != 2048 || cfg.UploadMode != engine.Whole || cfg.SessionTimeout != 30*time.Second {
		t.Errorf("engine config = %+v", cfg)
	}
	if cfg.InitialPath != "/root" {
		t.Errorf("InitialPath = %q", cfg.InitialPath)
	}
}

func TestParseConfigRequiresOperator(t *testing.T) {
	if _, err := ParseConfig([]string{"--sid", "hw1"}); err == nil {
		t.Error("expected an error without an operator id")
	}
}
