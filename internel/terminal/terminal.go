package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ANSI colors used for local notices.
const (
	Red    = 31
	Green  = 32
	Yellow = 33
	Cyan   = 36
)

// Channel carries the interactive shell. Outbound keystrokes go to the
// connection unchanged; inbound raw text goes to the display unchanged,
// ANSI sequences included.
type Channel struct {
	mu  sync.Mutex
	out io.Writer

	send func([]byte) error

	// When set, a typed "<prefix><name>" line becomes a download request
	// instead of shell input.
	prefix     string
	onDownload func(name string) error

	watchers map[int]func([]byte) bool
	nextID   int
}

func NewChannel(out io.Writer, send func([]byte) error) *Channel {
	if out == nil {
		out = io.Discard
	}
	return &Channel{out: out, send: send}
}

// InterceptDownloads enables the typed download command.
func (c *Channel) InterceptDownloads(prefix string, fn func(name string) error) {
	c.prefix = prefix
	c.onDownload = fn
}

func (c *Channel) SendKeystrokes(b []byte) error {
	if name, ok := c.downloadCommand(b); ok {
		return c.onDownload(name)
	}
	if err := c.send(b); err != nil {
		return errors.Wrap(err, "send keystrokes")
	}
	return nil
}

func (c *Channel) downloadCommand(b []byte) (string, bool) {
	if c.prefix == "" || c.onDownload == nil {
		return "", false
	}
	line := strings.TrimSpace(string(b))
	if !strings.HasPrefix(line, c.prefix) {
		return "", false
	}
	name := strings.TrimSpace(line[len(c.prefix):])
	return name, name != ""
}

// OnRawText displays shell output and hands it to every watcher.
func (c *Channel) OnRawText(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.out.Write(b)
	for id, fn := range c.watchers {
		if fn(b) {
			delete(c.watchers, id)
		}
	}
}

// Watch sees shell output as it arrives until fn returns true or the
// returned stop func is called. fn runs with the channel locked.
func (c *Channel) Watch(fn func([]byte) bool) (stop func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watchers == nil {
		c.watchers = make(map[int]func([]byte) bool)
	}
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Channel) write(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.out.Write(b)
}

// Notice prints a colored local message on its own line.
func (c *Channel) Notice(color int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.write([]byte(fmt.Sprintf("\r\n\x1b[1;%dm%s\x1b[0m\r\n", color, msg)))
}

// Status rewrites the current line, for progress that updates in place.
func (c *Channel) Status(color int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.write([]byte(fmt.Sprintf("\r\x1b[1;%dm%s\x1b[0m\x1b[K", color, msg)))
}
