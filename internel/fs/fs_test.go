package fs

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

func TestLocalReadFile(t *testing.T) {
	mem := afero.NewMemMapFs()
	if err := afero.WriteFile(mem, "/home/me/a.txt", []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLocal(mem)

	f, err := l.ReadFile("/home/me/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if f.Name != "a.txt" || f.Size != 5 || string(f.Data) != "hello" {
		t.Errorf("unexpected file %+v", f)
	}

	if _, err := l.ReadFile("/home/me/missing.txt"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := l.ReadFile("/home/me"); err == nil {
		t.Error("expected error for directory")
	}
}

func TestCollectFileList(t *testing.T) {
	mem := afero.NewMemMapFs()
	for _, p := range []string{"/up/b.txt", "/up/a.txt", "/up/sub/c.txt"} {
		if err := afero.WriteFile(mem, p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	_ = mem.MkdirAll("/up/empty", 0o755)

	files, err := NewLocal(mem).CollectFileList("/up")
	if err != nil {
		t.Fatalf("CollectFileList: %v", err)
	}
	want := []string{"a.txt", "b.txt", filepath.Join("sub", "c.txt")}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", files, want)
	}
}

func TestSaverTarget(t *testing.T) {
	s := NewSaver(afero.NewMemMapFs(), "/dl")

	tests := []struct {
		name, hint string
		compress   bool
		want       string
	}{
		{"x.bin", "", false, filepath.Join("/dl", "x.bin")},
		{"x.bin", "renamed.bin", false, filepath.Join("/dl", "renamed.bin")},
		{"x.bin", "/tmp/abs.bin", false, "/tmp/abs.bin"},
		{"x.bin", "", true, filepath.Join("/dl", "x.bin.zst")},
	}
	for _, tt := range tests {
		s.Compress = tt.compress
		if got := s.Target(tt.name, tt.hint); got != tt.want {
			t.Errorf("Target(%q, %q) = %q, want %q", tt.name, tt.hint, got, tt.want)
		}
	}
}

func TestSaverSave(t *testing.T) {
	mem := afero.NewMemMapFs()
	s := NewSaver(mem, "/dl")
	data := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 512)

	saved, err := s.Save("x.bin", "", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", saved.Size, len(data))
	}
	sum := md5.Sum(data)
	if saved.MD5 != hex.EncodeToString(sum[:]) {
		t.Errorf("md5 = %s", saved.MD5)
	}

	got, err := afero.ReadFile(mem, saved.Path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("content mismatch")
	}

	entries, _ := afero.ReadDir(mem, "/dl")
	if len(entries) != 1 {
		t.Errorf("expected only the final file in /dl, got %d entries", len(entries))
	}
}

func TestSaverCompress(t *testing.T) {
	mem := afero.NewMemMapFs()
	s := NewSaver(mem, "/dl")
	s.Compress = true
	data := []byte(strings.Repeat("log line\n", 300))

	saved, err := s.Save("app.log", "", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", saved.Size, len(data))
	}
	f, err := mem.Open(saved.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	out, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("decompressed content mismatch")
	}
}
