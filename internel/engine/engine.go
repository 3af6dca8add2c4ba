// Package engine runs the shell and file-transfer protocol over one
// websocket connection.
package engine

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"wsshell/internel/browse"
	"wsshell/internel/codec"
	"wsshell/internel/fs"
	. "wsshell/internel/log"
	"wsshell/internel/metrics"
	"wsshell/internel/shared"
	"wsshell/internel/terminal"
	"wsshell/internel/transfer"
	"wsshell/internel/util"
)

// Conn is the part of *websocket.Conn the engine uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Engine owns the connection. Inbound frames are handled one at a time, in
// arrival order, on the goroutine running Run.
type Engine struct {
	conn      Conn
	config    *Config
	callbacks *Callbacks
	local     *fs.Local
	saver     Saver
	out       io.Writer
	now       func() time.Time

	httpBase   string
	operator   string
	httpClient *http.Client

	// writeMu serializes frames on the connection. pairMu keeps the
	// start, payload and end frames of one upload together.
	writeMu sync.Mutex
	pairMu  sync.Mutex

	stateMu sync.Mutex
	state   shared.ConnState
	closing bool

	tracker *transfer.Tracker
	nav     *browse.Navigator
	term    *terminal.Channel

	dlMu      sync.Mutex
	requested []request
	hints     map[string]string
}

// request is a download asked for but not yet started by the server.
type request struct {
	remote string
	hint   string
	id     string
}

var schemeRe = regexp.MustCompile(`^(https?|wss?)://`)

// BuildURL returns the shell endpoint for operator on server. Any scheme on
// server is replaced according to ssl.
func BuildURL(server string, ssl bool, operator string) string {
	addr := strings.TrimSuffix(schemeRe.ReplaceAllString(server, ""), "/")
	scheme := "ws://"
	if ssl {
		scheme = "wss://"
	}
	return strings.Join([]string{scheme, addr, shared.ApiPrefix, "/", operator}, "")
}

// BuildHTTPBase returns the plain HTTP origin of server.
func BuildHTTPBase(server string, ssl bool) string {
	addr := strings.TrimSuffix(schemeRe.ReplaceAllString(server, ""), "/")
	if ssl {
		return "https://" + addr
	}
	return "http://" + addr
}

// Dial connects to url and returns an Open engine. Run must be called to
// start processing inbound frames.
func Dial(ctx context.Context, url string, header http.Header, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	e.setState(shared.Connecting, nil)

	Log.Debugln("url:", url)
	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		err = errors.Wrapf(err, "dial %s", url)
		e.setState(shared.Failed, err)
		return nil, err
	}
	e.attach(conn)
	return e, nil
}

// New wraps an already established connection.
func New(conn Conn, opts ...Option) *Engine {
	e := newEngine(opts)
	e.attach(conn)
	return e
}

func newEngine(opts []Option) *Engine {
	e := &Engine{
		config:    DefaultConfig(),
		callbacks: mergeCallbacks(nil),
		now:       time.Now,
		hints:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.local == nil {
		e.local = fs.NewLocal(nil)
	}
	if e.saver == nil {
		e.saver = fs.NewSaver(nil, ".")
	}

	e.tracker = transfer.NewTracker(e.config.BlockSize)
	e.nav = browse.NewNavigator(e.config.InitialPath, e.sendEnvelope)
	e.term = terminal.NewChannel(e.out, e.sendText)
	if e.config.DownloadCommand != "" {
		e.term.InterceptDownloads(e.config.DownloadCommand, func(name string) error {
			return e.StartDownload(name, "")
		})
	}
	return e
}

func (e *Engine) attach(conn Conn) {
	e.conn = conn
	e.setState(shared.Open, nil)
}

func (e *Engine) State() shared.ConnState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// setState reports a transition. Closed and Failed are final.
func (e *Engine) setState(s shared.ConnState, err error) {
	e.stateMu.Lock()
	if e.state == shared.Closed || e.state == shared.Failed {
		e.stateMu.Unlock()
		return
	}
	e.state = s
	e.stateMu.Unlock()

	Log.Debugln("connection", s)
	metrics.SetConnectionState(int(s))
	if e.config.Banner {
		switch s {
		case shared.Open:
			e.term.Notice(terminal.Green, "connected")
		case shared.Closed:
			e.term.Notice(terminal.Yellow, "connection closed")
		case shared.Failed:
			e.term.Notice(terminal.Red, "connection error: %v", err)
		}
	}
	e.callbacks.OnState(s, err)
}

func (e *Engine) isClosing() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.closing
}

// Close sends a normal close frame and releases the connection.
func (e *Engine) Close() error {
	e.stateMu.Lock()
	if e.closing || e.conn == nil {
		e.stateMu.Unlock()
		return nil
	}
	e.closing = true
	e.stateMu.Unlock()

	e.writeMu.Lock()
	_ = e.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second*5),
	)
	e.writeMu.Unlock()

	err := e.conn.Close()
	e.setState(shared.Closed, nil)
	return errors.Wrap(err, "close connection")
}

func (e *Engine) sendEnvelope(m codec.Outbound) error {
	buf, err := codec.Encode(m)
	if err != nil {
		return err
	}
	Log.Debugln("send", m.Tag())
	return e.sendText(buf)
}

func (e *Engine) sendText(buf []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return util.WriteText(e.conn, buf)
}

func (e *Engine) sendBinary(buf []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return util.WriteBinary(e.conn, buf)
}

// Path is the current remote directory.
func (e *Engine) Path() string {
	return e.nav.Path()
}

// Entries is the last listing received for Path.
func (e *Engine) Entries() []shared.DirectoryEntry {
	return e.nav.Entries()
}

func (e *Engine) Loading() bool {
	return e.nav.Loading()
}

func (e *Engine) Uploads() []transfer.Session {
	return e.tracker.Uploads()
}

func (e *Engine) Downloads() []transfer.Session {
	return e.tracker.Downloads()
}

// Discard forgets a finished upload.
func (e *Engine) Discard(filename string) bool {
	return e.tracker.Discard(filename)
}

// SendKeystrokes forwards shell input unchanged.
func (e *Engine) SendKeystrokes(b []byte) error {
	return e.term.SendKeystrokes(b)
}
