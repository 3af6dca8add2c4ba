package browse

import (
	"testing"

	"github.com/pkg/errors"
	"wsshell/internel/codec"
	"wsshell/internel/shared"
)

type recorder struct {
	sent []*codec.ListFiles
	err  error
}

func (r *recorder) send(m codec.Outbound) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m.(*codec.ListFiles))
	return nil
}

func u64(v uint64) *uint64 { return &v }

func listing(files ...codec.FileInfo) *codec.FileList {
	return &codec.FileList{Files: files}
}

func TestListingScenario(t *testing.T) {
	r := &recorder{}
	n := NewNavigator("/home", r.send)

	if err := n.Request(); err != nil {
		t.Fatal(err)
	}
	if len(r.sent) != 1 || r.sent[0].Path != "/home" {
		t.Fatalf("sent %+v", r.sent)
	}
	if !n.Loading() {
		t.Error("expected loading after request")
	}

	path, applied := n.OnListing(listing(
		codec.FileInfo{Name: "a.txt", Type: "file", Size: u64(10)},
		codec.FileInfo{Name: "docs", Type: "directory"},
	))
	if !applied || path != "/home" {
		t.Fatalf("listing applied=%v to %q", applied, path)
	}
	got := n.Entries()
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].Name != "a.txt" || got[0].Kind != shared.KFile || *got[0].Size != 10 {
		t.Errorf("first entry %+v", got[0])
	}
	if got[1].Name != "docs" || got[1].Kind != shared.KDir {
		t.Errorf("second entry %+v", got[1])
	}
	if n.Loading() {
		t.Error("still loading after listing")
	}
}

func TestListingReplacesWholesale(t *testing.T) {
	n := NewNavigator("/", (&recorder{}).send)
	n.OnListing(listing(codec.FileInfo{Name: "a"}, codec.FileInfo{Name: "b"}))
	n.OnListing(listing(codec.FileInfo{Name: "c"}))

	got := n.Entries()
	if len(got) != 1 || got[0].Name != "c" {
		t.Errorf("entries = %+v", got)
	}
}

func TestDescend(t *testing.T) {
	r := &recorder{}
	n := NewNavigator("/home", r.send)
	n.OnListing(listing(
		codec.FileInfo{Name: "a.txt", Type: "file"},
		codec.FileInfo{Name: "docs", Type: "directory"},
	))

	moved, err := n.Descend("a.txt")
	if err != nil || moved {
		t.Fatalf("descend into file: moved=%v err=%v", moved, err)
	}
	if n.Path() != "/home" || len(r.sent) != 0 {
		t.Errorf("file click changed navigation: %s, %d requests", n.Path(), len(r.sent))
	}

	moved, err = n.Descend("docs")
	if err != nil || !moved {
		t.Fatalf("descend into dir: moved=%v err=%v", moved, err)
	}
	if n.Path() != "/home/docs" {
		t.Errorf("path = %s", n.Path())
	}
	if len(r.sent) != 1 || r.sent[0].Path != "/home/docs" {
		t.Errorf("sent %+v", r.sent)
	}

	if moved, _ := n.Descend("missing"); moved {
		t.Error("descended into unknown entry")
	}
}

func TestChangeDirectory(t *testing.T) {
	r := &recorder{}
	n := NewNavigator("/root", r.send)

	tests := []struct {
		in, want string
	}{
		{"logs", "/root/logs"},
		{"../tmp/./x", "/root/tmp/x"},
		{"/etc//nginx/", "/etc/nginx"},
		{"../../../..", "/"},
	}
	for _, tt := range tests {
		if err := n.ChangeDirectory(tt.in); err != nil {
			t.Fatal(err)
		}
		if n.Path() != tt.want {
			t.Errorf("cd %q -> %s, want %s", tt.in, n.Path(), tt.want)
		}
	}
	n.ChangeDirectory("/var/log")
	n.Up()
	if n.Path() != "/var" {
		t.Errorf("up -> %s", n.Path())
	}
}

func TestStaleListingDropped(t *testing.T) {
	r := &recorder{}
	n := NewNavigator("/", r.send)
	n.ChangeDirectory("/a")
	n.ChangeDirectory("/b")
	first, second := r.sent[0].RequestID, r.sent[1].RequestID
	if first == "" || first == second {
		t.Fatalf("request ids %q %q", first, second)
	}

	late := listing(codec.FileInfo{Name: "from-a"})
	late.RequestID = first
	if _, ok := n.OnListing(late); ok {
		t.Error("stale listing applied")
	}

	fresh := listing(codec.FileInfo{Name: "from-b"})
	fresh.RequestID = second
	if _, ok := n.OnListing(fresh); !ok || n.Entries()[0].Name != "from-b" {
		t.Error("current listing not applied")
	}
}

func TestListingForOtherPathDropped(t *testing.T) {
	r := &recorder{}
	n := NewNavigator("/", r.send)
	n.ChangeDirectory("/a")
	n.ChangeDirectory("/b/")

	late := listing(codec.FileInfo{Name: "from-a"})
	late.Path = "/a"
	if _, ok := n.OnListing(late); ok {
		t.Error("listing for /a applied while at /b")
	}
	if !n.Loading() {
		t.Error("stale listing cleared loading")
	}

	fresh := listing(codec.FileInfo{Name: "from-b"})
	fresh.Path = "/b/./"
	path, ok := n.OnListing(fresh)
	if !ok || path != "/b" || n.Entries()[0].Name != "from-b" {
		t.Errorf("listing for /b: applied=%v path=%q", ok, path)
	}
}

func TestRequestSendFailure(t *testing.T) {
	r := &recorder{err: errors.New("closed")}
	n := NewNavigator("", r.send)
	if n.Path() != shared.DefaultPath {
		t.Errorf("default path = %s", n.Path())
	}
	if err := n.Request(); err == nil {
		t.Fatal("expected error")
	}
	if n.Loading() {
		t.Error("loading left set after failed send")
	}
}
