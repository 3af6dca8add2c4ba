package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"wsshell/internel/codec"
	"wsshell/internel/fs"
	. "wsshell/internel/log"
	"wsshell/internel/metrics"
	"wsshell/internel/shared"
	"wsshell/internel/terminal"
	"wsshell/internel/transfer"
	"wsshell/internel/util"
)

type inbound struct {
	messageType int
	data        []byte
	err         error
}

// Run processes inbound frames until the connection ends or ctx is done.
// A normal close returns nil.
func (e *Engine) Run(ctx context.Context) error {
	frames := make(chan inbound)
	done := make(chan struct{})
	defer close(done)
	go e.readLoop(frames, done)

	var sweep <-chan time.Time
	if e.config.SessionTimeout > 0 && e.config.SweepInterval > 0 {
		ticker := time.NewTicker(e.config.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			_ = e.Close()
			e.abandon("connection closed")
			return ctx.Err()
		case <-sweep:
			e.sweep()
		case in := <-frames:
			if in.err != nil {
				return e.finish(in.err)
			}
			e.dispatch(codec.Classify(in.messageType, in.data))
		}
	}
}

func (e *Engine) readLoop(frames chan<- inbound, done <-chan struct{}) {
	for {
		mt, data, err := util.ReadFrame(e.conn)
		select {
		case frames <- inbound{messageType: mt, data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (e *Engine) finish(err error) error {
	if e.isClosing() || util.IsNormalClose(err) {
		e.setState(shared.Closed, nil)
		e.abandon("connection closed")
		return nil
	}
	err = errors.Wrap(err, "read frame")
	Log.Errorln("connection error", err)
	e.setState(shared.Failed, err)
	e.abandon(err.Error())
	return err
}

// abandon fails every transfer still in flight once the connection is gone.
func (e *Engine) abandon(reason string) {
	now := e.now()
	for _, s := range e.tracker.Uploads() {
		if s.Status.Terminal() {
			continue
		}
		if f, ok := e.tracker.FailUpload(s.ID, transfer.NewError(transfer.ErrConnection, s.ID, reason), now); ok {
			e.uploadUpdate(f)
		}
	}
	for _, s := range e.tracker.Downloads() {
		if f, ok := e.tracker.FailDownload(s.TransferID, transfer.NewError(transfer.ErrConnection, "", reason), now); ok {
			e.takeHint(s.TransferID)
			e.downloadUpdate(f)
		}
	}
}

func (e *Engine) sweep() {
	for _, s := range e.tracker.Sweep(e.now(), e.config.SessionTimeout) {
		Log.Warnln("transfer timed out", s.Direction, s.ID)
		if s.Direction == transfer.Upload {
			e.uploadUpdate(s)
		} else {
			e.takeHint(s.TransferID)
			e.downloadUpdate(s)
		}
	}
}

func (e *Engine) uploadUpdate(s transfer.Session) {
	if s.Status.Terminal() {
		metrics.TransferFinished(s.Direction.String(), s.Status.String())
	}
	e.callbacks.OnUploadUpdate(s)
}

func (e *Engine) downloadUpdate(s transfer.Session) {
	if s.Status.Terminal() {
		metrics.TransferFinished(s.Direction.String(), s.Status.String())
	}
	e.callbacks.OnDownloadUpdate(s)
}

func (e *Engine) dispatch(f codec.Frame) {
	metrics.RecordFrame(f.Kind.String())
	switch f.Kind {
	case codec.RawText:
		e.term.OnRawText(f.Data)
	case codec.Binary:
		if s, ok := e.tracker.AppendBinary(f.Data, e.now()); ok {
			e.downloadUpdate(s)
			return
		}
		e.term.OnRawText(f.Data)
	case codec.Control:
		metrics.RecordEnvelope(f.Envelope.Tag)
		if err := e.handle(f.Envelope); err != nil {
			Log.Warnln("drop", shared.GetTypeName(f.Envelope.Tag), err)
		}
	}
}

func (e *Engine) handle(env *codec.Envelope) error {
	switch env.Tag {
	case shared.FileList:
		return e.onFileList(env)
	case shared.Error:
		return e.onError(env)
	case shared.FileDownloadStart:
		return e.onDownloadStart(env)
	case shared.FileDownloadChunk:
		return e.onDownloadChunk(env)
	case shared.FileDownloadEnd:
		return e.onDownloadEnd(env)
	case shared.FileUploadProgress:
		return e.onUploadProgress(env)
	case shared.FileUploadComplete:
		return e.onUploadComplete(env)
	case shared.FileUploadError:
		return e.onUploadError(env)
	}
	return errors.Errorf("unhandled type %s", env.Tag)
}

func (e *Engine) onFileList(env *codec.Envelope) error {
	var m codec.FileList
	if err := env.Decode(&m); err != nil {
		return err
	}
	path, ok := e.nav.OnListing(&m)
	if !ok {
		Log.Debugln("stale listing dropped", m.Path, m.RequestID)
		return nil
	}
	e.callbacks.OnListing(path, m.Entries())
	return nil
}

func (e *Engine) onError(env *codec.Envelope) error {
	var m codec.ErrorMessage
	if err := env.Decode(&m); err != nil {
		return err
	}
	Log.Warnln("server error:", m.Message)

	if s, ok := e.failRequested(m.RequestID, m.Message); ok {
		e.downloadUpdate(s)
	} else {
		e.nav.OnError()
	}
	e.callbacks.OnError(m.Message)
	e.term.Notice(terminal.Red, "%s", m.Message)
	return nil
}

// failRequested attributes a server error to a download. An echoed id
// picks the request it names. Without one, a download mid-stream fails,
// else the oldest unanswered request does unless a listing is in flight.
func (e *Engine) failRequested(requestID, message string) (transfer.Session, bool) {
	now := e.now()
	if requestID == "" {
		if cur, ok := e.tracker.Current(); ok {
			s, ok := e.tracker.FailDownload(cur.TransferID, transfer.NewError(transfer.ErrProtocol, "", message), now)
			e.takeHint(cur.TransferID)
			return s, ok
		}
		if e.nav.Loading() {
			return transfer.Session{}, false
		}
	}

	e.dlMu.Lock()
	idx := -1
	for i, r := range e.requested {
		if requestID == "" || r.id == requestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.dlMu.Unlock()
		return transfer.Session{}, false
	}
	r := e.requested[idx]
	e.requested = append(e.requested[:idx], e.requested[idx+1:]...)
	e.dlMu.Unlock()

	metrics.TransferStarted(transfer.Download.String())
	return transfer.Session{
		ID:         r.remote,
		Name:       fs.Base(r.remote),
		RequestID:  r.id,
		Direction:  transfer.Download,
		Status:     transfer.Failed,
		Err:        transfer.NewError(transfer.ErrProtocol, r.remote, message),
		StartedAt:  now,
		LastActive: now,
	}, true
}

// claim pops the request a download start answers: the same remote path,
// else the same base name, else the oldest one.
func (e *Engine) claim(filename string) request {
	e.dlMu.Lock()
	defer e.dlMu.Unlock()

	if len(e.requested) == 0 {
		return request{}
	}
	exact, sameBase := -1, -1
	for i, r := range e.requested {
		if r.remote == filename {
			exact = i
			break
		}
		if sameBase < 0 && fs.Base(r.remote) == fs.Base(filename) {
			sameBase = i
		}
	}
	idx := 0
	switch {
	case exact >= 0:
		idx = exact
	case sameBase >= 0:
		idx = sameBase
	}
	r := e.requested[idx]
	e.requested = append(e.requested[:idx], e.requested[idx+1:]...)
	return r
}

func (e *Engine) takeHint(transferID string) string {
	e.dlMu.Lock()
	defer e.dlMu.Unlock()
	hint := e.hints[transferID]
	delete(e.hints, transferID)
	return hint
}

func (e *Engine) onDownloadStart(env *codec.Envelope) error {
	var m codec.DownloadStart
	if err := env.Decode(&m); err != nil {
		return err
	}
	r := e.claim(m.Filename)

	if _, ok := e.tracker.Download(m.TransferID); ok {
		Log.Warnln("download restarted, dropping buffer", m.TransferID)
		metrics.TransferFinished(transfer.Download.String(), "replaced")
	}
	s := e.tracker.StartDownload(m.Filename, m.TotalSize, m.TransferID, e.now())
	s.RequestID = r.id

	e.dlMu.Lock()
	e.hints[m.TransferID] = r.hint
	e.dlMu.Unlock()

	metrics.TransferStarted(transfer.Download.String())
	Log.Infof("download %s started, %d bytes", m.Filename, m.TotalSize)
	if e.config.Banner {
		e.term.Notice(terminal.Cyan, "downloading %s (%d bytes)", s.Name, m.TotalSize)
	}
	e.downloadUpdate(s)
	return nil
}

func (e *Engine) onDownloadChunk(env *codec.Envelope) error {
	var m codec.DownloadChunk
	if err := env.Decode(&m); err != nil {
		return err
	}
	s, err := e.tracker.AppendChunk(m.TransferID, m.Content, m.ChunkSize, e.now())
	if err != nil {
		return err
	}
	e.downloadUpdate(s)
	return nil
}

func (e *Engine) onDownloadEnd(env *codec.Envelope) error {
	var m codec.DownloadEnd
	if err := env.Decode(&m); err != nil {
		return err
	}
	a, s, err := e.tracker.FinishDownload(m.TransferID, e.now())
	if errors.Cause(err) == transfer.ErrNoSession {
		return err
	}
	hint := e.takeHint(m.TransferID)
	if err != nil {
		Log.Errorln("download failed", err)
		e.downloadUpdate(s)
		return nil
	}

	saved, err := e.saver.Save(s.Name, hint, a.Reader())
	if err != nil {
		Log.Errorln("save download error", err)
		s.Status = transfer.Failed
		s.Err = transfer.NewError(transfer.ErrLocalIO, s.ID, err.Error())
		e.downloadUpdate(s)
		e.callbacks.OnError(s.Err.Error())
		e.term.Notice(terminal.Red, "download %s failed: %v", s.Name, err)
		return nil
	}

	metrics.RecordDownloadBytes(a.Size)
	Log.Infof("download %s saved to %s (%d bytes, md5 %s)", s.Name, saved.Path, saved.Size, saved.MD5)
	e.downloadUpdate(s)
	e.callbacks.OnSaved(s, saved)
	e.term.Notice(terminal.Green, "saved %s", saved.Path)
	return nil
}

func (e *Engine) onUploadProgress(env *codec.Envelope) error {
	var m codec.UploadProgress
	if err := env.Decode(&m); err != nil {
		return err
	}
	if s, ok := e.tracker.UploadProgress(m.Filename, m.Progress, e.now()); ok {
		e.uploadUpdate(s)
	}
	return nil
}

func (e *Engine) onUploadComplete(env *codec.Envelope) error {
	var m codec.UploadComplete
	if err := env.Decode(&m); err != nil {
		return err
	}
	s, ok := e.tracker.UploadComplete(m.Filename, e.now())
	if !ok {
		return nil
	}
	Log.Infof("upload %s complete", m.Filename)
	e.uploadUpdate(s)

	// the server-side directory changed
	if err := e.nav.Request(); err != nil {
		Log.Warnln("refresh listing error", err)
	}
	return nil
}

func (e *Engine) onUploadError(env *codec.Envelope) error {
	var m codec.UploadError
	if err := env.Decode(&m); err != nil {
		return err
	}
	msg := m.Message
	if msg == "" {
		msg = "upload failed"
	}
	s, ok := e.tracker.FailUpload(m.Filename, transfer.NewError(transfer.ErrProtocol, m.Filename, msg), e.now())
	if !ok {
		return nil
	}
	Log.Warnln("upload error", m.Filename, msg)
	e.uploadUpdate(s)
	e.callbacks.OnError(s.Err.Error())
	return nil
}
