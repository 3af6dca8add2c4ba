package engine

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"wsshell/internel/fs"
	. "wsshell/internel/log"
	"wsshell/internel/metrics"
	"wsshell/internel/shared"
	"wsshell/internel/terminal"
	"wsshell/internel/transfer"
)

var ErrNoHTTP = errors.New("http download not configured")

// countingReader remembers how much was read and the first read error, so
// a broken response body is told apart from a failed local write.
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	return n, err
}

// FetchFile downloads name from the current remote directory over plain
// HTTP and saves it like a websocket download. It blocks until the body is
// stored. The session is reported through OnDownloadUpdate only and takes
// no download slot.
func (e *Engine) FetchFile(ctx context.Context, name, hint string) (transfer.Session, error) {
	if e.httpBase == "" {
		return transfer.Session{}, ErrNoHTTP
	}
	remote := e.nav.Resolve(name)
	now := e.now()
	s := transfer.Session{
		ID:         remote,
		Name:       fs.Base(remote),
		Direction:  transfer.Download,
		Status:     transfer.Active,
		StartedAt:  now,
		LastActive: now,
	}
	metrics.TransferStarted(transfer.Download.String())
	e.downloadUpdate(s)

	target := e.httpBase + shared.DownloadAPI + "?path=" + url.QueryEscape(remote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return e.failFetch(s, transfer.ErrProtocol, err)
	}
	req.Header.Set(shared.OperatorHeader, e.operator)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return e.failFetch(s, transfer.ErrConnection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return e.failFetch(s, transfer.ErrProtocol, errors.Errorf("server returned %d", resp.StatusCode))
	}
	if resp.ContentLength > 0 {
		s.TotalSize = uint64(resp.ContentLength)
	}
	if e.config.Banner {
		e.term.Notice(terminal.Cyan, "downloading %s over http", s.Name)
	}

	body := &countingReader{r: resp.Body}
	saved, err := e.saver.Save(s.Name, hint, body)
	if err != nil {
		if body.err != nil {
			return e.failFetch(s, transfer.ErrConnection, body.err)
		}
		return e.failFetch(s, transfer.ErrLocalIO, err)
	}

	s.Status = transfer.Succeeded
	s.Progress = 100
	s.TransferredSize = uint64(body.n)
	if s.TotalSize == 0 {
		s.TotalSize = s.TransferredSize
	}
	s.LastActive = e.now()

	metrics.RecordDownloadBytes(body.n)
	Log.Infof("fetch %s saved to %s (%d bytes, md5 %s)", remote, saved.Path, saved.Size, saved.MD5)
	e.downloadUpdate(s)
	e.callbacks.OnSaved(s, saved)
	e.term.Notice(terminal.Green, "saved %s", saved.Path)
	return s, nil
}

func (e *Engine) failFetch(s transfer.Session, kind transfer.ErrorKind, cause error) (transfer.Session, error) {
	Log.Errorln("fetch", s.ID, cause)
	s.Status = transfer.Failed
	s.Err = transfer.NewError(kind, s.ID, cause.Error())
	s.LastActive = e.now()
	e.downloadUpdate(s)
	e.callbacks.OnError(s.Err.Error())
	return s, s.Err
}
