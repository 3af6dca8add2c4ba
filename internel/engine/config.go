package engine

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/afero"
	"wsshell/internel/fs"
	"wsshell/internel/shared"
	"wsshell/internel/transfer"
)

type UploadMode int

const (
	// Chunked sends the payload as a series of bounded binary frames.
	Chunked UploadMode = iota
	// Whole sends the payload as a single binary frame.
	Whole
)

func (m UploadMode) String() string {
	if m == Whole {
		return "whole"
	}
	return "chunked"
}

func ParseUploadMode(s string) UploadMode {
	if s == "whole" {
		return Whole
	}
	return Chunked
}

type Config struct {
	ChunkSize  int
	BlockSize  int
	UploadMode UploadMode

	// SessionTimeout fails transfers idle for longer. Zero disables it.
	SessionTimeout time.Duration
	SweepInterval  time.Duration

	InitialPath string

	// DownloadCommand is the typed shell line prefix turned into a download
	// request. Empty disables the intercept.
	DownloadCommand string

	// Banner prints colored connect/close/error notices on the terminal.
	Banner bool

	// ShellDirTimeout bounds the wait for the shell to answer pwd.
	ShellDirTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		ChunkSize:       transfer.DefaultChunkSize,
		BlockSize:       transfer.DefaultBlockSize,
		UploadMode:      Chunked,
		SweepInterval:   5 * time.Second,
		InitialPath:     shared.DefaultPath,
		DownloadCommand: "download ",
		Banner:          true,
		ShellDirTimeout: time.Second,
	}
}

// Saver stores a finished download locally. hint is the destination chosen
// when the download was requested, possibly empty.
type Saver interface {
	Save(name, hint string, r io.Reader) (*fs.Saved, error)
}

type Option func(*Engine)

func WithConfig(c *Config) Option {
	return func(e *Engine) {
		if c != nil {
			e.config = c
		}
	}
}

func WithCallbacks(c *Callbacks) Option {
	return func(e *Engine) {
		e.callbacks = mergeCallbacks(c)
	}
}

// WithFs sets the filesystem uploads are read from.
func WithFs(f afero.Fs) Option {
	return func(e *Engine) {
		e.local = fs.NewLocal(f)
	}
}

func WithSaver(s Saver) Option {
	return func(e *Engine) {
		if s != nil {
			e.saver = s
		}
	}
}

// WithOutput sets where terminal text and notices are written.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithHTTP enables FetchFile against the download endpoint at base, sent
// on behalf of operator. A nil client uses http.DefaultClient.
func WithHTTP(base, operator string, client *http.Client) Option {
	return func(e *Engine) {
		if client == nil {
			client = http.DefaultClient
		}
		e.httpBase = strings.TrimSuffix(base, "/")
		e.operator = operator
		e.httpClient = client
	}
}
