package fs

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/a/./b/../c", "/a/c"},
		{"/a/b/..", "/a"},
		{"/../a", "/a"},
		{"", "/"},
		{"/", "/"},
		{"//root//docs/", "/root/docs"},
		{"root/docs", "/root/docs"},
		{"/a/../../..", "/"},
		{"/root/./.", "/root"},
		{"/root/.../x", "/root/.../x"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"/a/./b/../c", "../../x", "/home//user/./.ssh/", "a/b/c/../../d", ".", "..", "/..//./",
	}
	for _, p := range inputs {
		once := Normalize(p)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", p, once, twice)
		}
	}
}

func TestResolveAndJoin(t *testing.T) {
	if got := Join("/root", "docs"); got != "/root/docs" {
		t.Errorf("Join = %q", got)
	}
	if got := Join("/root", ".."); got != "/" {
		t.Errorf("Join up = %q", got)
	}
	if got := Resolve("/root", "/etc/./nginx"); got != "/etc/nginx" {
		t.Errorf("Resolve absolute = %q", got)
	}
	if got := Resolve("/root", "logs/../tmp"); got != "/root/tmp" {
		t.Errorf("Resolve relative = %q", got)
	}
}

func TestBase(t *testing.T) {
	tests := map[string]string{
		"/root/x.bin": "x.bin",
		"x.bin":       "x.bin",
		"/root/dir/":  "dir",
		"/":           "download",
		"":            "download",
	}
	for in, want := range tests {
		if got := Base(in); got != want {
			t.Errorf("Base(%q) = %q, want %q", in, got, want)
		}
	}
}
