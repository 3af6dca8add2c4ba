package fs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"wsshell/internel/hash"
	. "wsshell/internel/log"
	"wsshell/internel/util"
)

// Saved describes an artifact written to local storage.
type Saved struct {
	Path string
	Size int64
	MD5  string
}

// Saver is the "save to local storage" capability for finished downloads.
type Saver struct {
	Fs       afero.Fs
	Dir      string
	Compress bool
}

func NewSaver(fs afero.Fs, dir string) *Saver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "."
	}
	return &Saver{Fs: fs, Dir: dir}
}

// Target picks the destination path. A hint chosen when the download was
// requested wins; absolute hints are used as-is, relative ones land in Dir.
func (s *Saver) Target(name, hint string) string {
	p := name
	if hint != "" {
		p = hint
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.Dir, p)
	}
	if s.Compress && !strings.HasSuffix(p, ".zst") {
		p += ".zst"
	}
	return p
}

// Save streams r into the target through a temporary sibling file so a
// failed write never leaves a partial artifact behind.
func (s *Saver) Save(name, hint string, r io.Reader) (*Saved, error) {
	dest := s.Target(name, hint)
	if err := s.Fs.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(dest))
	}

	tmp := strings.Join([]string{dest, ksuid.New().String()}, ".")
	f, err := s.Fs.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", tmp)
	}

	h, done := hash.GetHash()
	defer done()
	src := io.TeeReader(r, h)

	var n int64
	if s.Compress {
		n, err = util.ZstdCopy(f, src)
	} else {
		n, err = io.Copy(f, src)
	}
	if err != nil {
		Log.Errorln("write artifact error", err)
		_ = f.Close()
		_ = s.Fs.Remove(tmp)
		return nil, errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.Close(); err != nil {
		_ = s.Fs.Remove(tmp)
		return nil, errors.Wrapf(err, "close %s", tmp)
	}
	if err := s.Fs.Rename(tmp, dest); err != nil {
		_ = s.Fs.Remove(tmp)
		return nil, errors.Wrapf(err, "rename %s", tmp)
	}

	return &Saved{Path: dest, Size: n, MD5: hash.Sum(h)}, nil
}
