package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"wsshell/internel/engine"
	"wsshell/internel/fs"
	. "wsshell/internel/log"
	"wsshell/internel/metrics"
	"wsshell/internel/shared"
	"wsshell/internel/transfer"
)

var (
	errQuit   = errors.New("quit")
	errClosed = errors.New("connection closed")
)

// ctrl-] leaves raw mode
const escapeKey = 0x1d

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func doSession(ctx context.Context, conf *Config) error {
	out := &lockedWriter{w: os.Stdout}
	c := &console{out: out, raw: conf.Raw}

	saver := fs.NewSaver(afero.NewOsFs(), conf.Dest)
	saver.Compress = conf.Compress

	header := http.Header{}
	header.Set(shared.SID, conf.SID)
	header.Set(shared.RID, conf.Operator)

	url := engine.BuildURL(conf.Server, conf.SSL, conf.Operator)
	e, err := engine.Dial(ctx, url, header,
		engine.WithConfig(conf.EngineConfig()),
		engine.WithSaver(saver),
		engine.WithOutput(out),
		engine.WithCallbacks(c.callbacks()),
		engine.WithHTTP(engine.BuildHTTPBase(conf.Server, conf.SSL), conf.Operator, nil),
	)
	if err != nil {
		Log.Errorf("Connect to %v server error", conf.Server)
		return err
	}
	defer func() { _ = e.Close() }()
	c.e = e

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := e.Run(ctx); err != nil {
			return err
		}
		return errClosed
	})

	if conf.Raw && term.IsTerminal(int(os.Stdin.Fd())) {
		state, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return errors.Wrap(err, "raw mode")
		}
		defer func() { _ = term.Restore(int(os.Stdin.Fd()), state) }()
		group.Go(func() error { return c.pumpRaw(ctx, readChunks(os.Stdin)) })
	} else {
		group.Go(func() error { return c.pumpLines(ctx, readLines(os.Stdin)) })
	}

	if conf.Metrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: conf.Metrics, Handler: mux}
		group.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := group.Wait(); err != nil && err != errQuit && err != errClosed && err != context.Canceled {
		return err
	}
	return nil
}

// readLines and readChunks feed stdin into a channel. The reader goroutine
// is left blocked on stdin when the session ends.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func readChunks(r io.Reader) <-chan []byte {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		buf := make([]byte, 1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				b := make([]byte, n)
				copy(b, buf[:n])
				ch <- b
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

type console struct {
	e   *engine.Engine
	out io.Writer
	raw bool
}

func (c *console) printf(format string, args ...interface{}) {
	nl := "\n"
	if c.raw {
		nl = "\r\n"
	}
	_, _ = fmt.Fprintf(c.out, format+nl, args...)
}

func (c *console) callbacks() *engine.Callbacks {
	return &engine.Callbacks{
		OnState: func(s shared.ConnState, err error) {
			Log.Infoln("connection", s)
		},
		OnListing: func(path string, entries []shared.DirectoryEntry) {
			c.printf("%s:", path)
			for _, en := range entries {
				size := "-"
				if en.Size != nil {
					size = fmt.Sprint(*en.Size)
				}
				modified := en.Modified
				if en.ModifiedAt != nil {
					modified = en.ModifiedAt.Local().Format("2006-01-02 15:04")
				}
				name := en.Name
				if en.IsDir() {
					name += "/"
				}
				c.printf("  %-10s %12s  %-16s  %s", en.Kind, size, modified, name)
			}
		},
		OnUploadUpdate: func(s transfer.Session) {
			if s.Status.Terminal() {
				c.printSession(s)
			}
		},
		OnDownloadUpdate: func(s transfer.Session) {
			if s.Status == transfer.Failed {
				c.printSession(s)
			}
		},
	}
}

func (c *console) printSession(s transfer.Session) {
	line := fmt.Sprintf("%-8s %-9s %6.1f%%  %s", s.Direction, s.Status, s.Progress, s.ID)
	if s.Err != nil {
		line += "  (" + s.Err.Error() + ")"
	}
	c.printf("%s", line)
}

func (c *console) pumpRaw(ctx context.Context, in <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-in:
			if !ok {
				return errQuit
			}
			if i := bytes.IndexByte(b, escapeKey); i >= 0 {
				if i > 0 {
					_ = c.e.SendKeystrokes(b[:i])
				}
				return errQuit
			}
			if err := c.e.SendKeystrokes(b); err != nil {
				return err
			}
		}
	}
}

func (c *console) pumpLines(ctx context.Context, in <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-in:
			if !ok {
				return errQuit
			}
			if err := c.exec(ctx, line); err != nil {
				return err
			}
		}
	}
}

// exec runs one typed line. Lines starting with ':' are local commands,
// everything else goes to the remote shell.
func (c *console) exec(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, ":") {
		return c.e.SendKeystrokes([]byte(line + "\r"))
	}

	args := strings.Fields(line[1:])
	if len(args) == 0 {
		return nil
	}
	var err error
	switch args[0] {
	case "q", "quit":
		return errQuit
	case "ls":
		err = c.e.ListDirectory()
	case "cd":
		target := shared.DefaultPath
		if len(args) > 1 {
			target = args[1]
		}
		err = c.e.ChangeDirectory(target)
	case "pwd":
		c.printf("%s", c.e.Path())
	case "get":
		if len(args) < 2 {
			c.printf("usage: :get <name> [dest]")
			return nil
		}
		hint := ""
		if len(args) > 2 {
			hint = args[2]
		}
		err = c.e.StartDownload(args[1], hint)
	case "fetch":
		if len(args) < 2 {
			c.printf("usage: :fetch <name> [dest]")
			return nil
		}
		hint := ""
		if len(args) > 2 {
			hint = args[2]
		}
		go func() {
			if _, err := c.e.FetchFile(ctx, args[1], hint); err != nil {
				Log.Warnln("fetch", args[1], err)
			}
		}()
	case "put":
		paths, here := args[1:], false
		if len(paths) > 0 && paths[0] == "-here" {
			paths, here = paths[1:], true
		}
		if len(paths) == 0 {
			c.printf("usage: :put [-here] <path>...")
			return nil
		}
		go c.put(ctx, paths, here)
	case "status":
		for _, s := range c.e.Uploads() {
			c.printSession(s)
		}
		for _, s := range c.e.Downloads() {
			c.printSession(s)
		}
	case "cancel":
		if len(args) > 1 {
			if !c.e.CancelUpload(args[1]) {
				c.printf("no upload %s in flight", args[1])
			}
		} else if !c.e.CancelDownload() {
			c.printf("no download in flight")
		}
	case "discard":
		for _, name := range args[1:] {
			c.e.Discard(name)
		}
	default:
		c.printf("unknown command :%s", args[0])
	}
	if err != nil {
		c.printf("%s: %v", args[0], err)
	}
	return nil
}

// put uploads into the browser's directory, or with here into the shell's
// working directory.
func (c *console) put(ctx context.Context, paths []string, here bool) {
	for _, p := range paths {
		if here {
			if _, err := c.e.UploadHere(ctx, p); err != nil {
				Log.Warnln("put", p, err)
			}
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			c.printf("put: %v", err)
			continue
		}
		if info.IsDir() {
			_, err = c.e.UploadDir(ctx, p)
		} else {
			_, err = c.e.StartUpload(ctx, p)
		}
		if err != nil {
			Log.Warnln("put", p, err)
		}
	}
}
