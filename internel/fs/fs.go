package fs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// LocalFile is a user-selected file read fully into memory.
type LocalFile struct {
	Path string
	Name string
	Size int64
	Data []byte
}

// Local is the local file-access capability. It only reads what it is
// asked for and never browses on its own.
type Local struct {
	Fs afero.Fs
}

func NewLocal(fs afero.Fs) *Local {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Local{Fs: fs}
}

func (l *Local) Stat(p string) (os.FileInfo, error) {
	info, err := l.Fs.Stat(p)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", p)
	}
	return info, nil
}

func (l *Local) ReadFile(p string) (*LocalFile, error) {
	info, err := l.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", p)
	}
	data, err := afero.ReadFile(l.Fs, p)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", p)
	}
	return &LocalFile{
		Path: p,
		Name: filepath.Base(p),
		Size: int64(len(data)),
		Data: data,
	}, nil
}

// CollectFileList returns every regular file below dir, relative to dir,
// in lexical order.
func (l *Local) CollectFileList(dir string) ([]string, error) {
	var files []string
	err := afero.Walk(l.Fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", dir)
	}
	sort.Strings(files)
	return files, nil
}
