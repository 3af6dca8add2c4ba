package engine

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"wsshell/internel/codec"
	"wsshell/internel/fs"
	. "wsshell/internel/log"
	"wsshell/internel/metrics"
	"wsshell/internel/terminal"
	"wsshell/internel/transfer"
)

// ListDirectory requests a listing of the current remote path.
func (e *Engine) ListDirectory() error {
	return e.nav.Request()
}

// ChangeDirectory moves to p, absolute or relative, and requests its listing.
func (e *Engine) ChangeDirectory(p string) error {
	return e.nav.ChangeDirectory(p)
}

// Descend enters the named directory of the current listing. It reports
// false without sending anything when name is not a directory.
func (e *Engine) Descend(name string) (bool, error) {
	return e.nav.Descend(name)
}

func (e *Engine) Up() error {
	return e.nav.Up()
}

// StartDownload asks the server to send name, resolved against the current
// remote path. A non-empty hint is where the artifact will be saved.
func (e *Engine) StartDownload(name, hint string) error {
	remote := e.nav.Resolve(name)
	id := ksuid.New().String()

	e.dlMu.Lock()
	e.requested = append(e.requested, request{remote: remote, hint: hint, id: id})
	e.dlMu.Unlock()

	downloadPath := hint
	if downloadPath == "" {
		downloadPath = fs.Base(remote)
	}
	if err := e.sendEnvelope(codec.NewDownloadRequest(remote, downloadPath, id)); err != nil {
		e.dlMu.Lock()
		for i, r := range e.requested {
			if r.id == id {
				e.requested = append(e.requested[:i], e.requested[i+1:]...)
				break
			}
		}
		e.dlMu.Unlock()
		return errors.Wrapf(err, "request download %s", remote)
	}
	Log.Debugln("download requested", remote)
	return nil
}

// StartUpload sends the local file at localPath into the current remote
// directory. The returned session stays Active until the server confirms.
// A failure affects only this upload.
func (e *Engine) StartUpload(ctx context.Context, localPath string) (transfer.Session, error) {
	return e.upload(ctx, localPath, e.nav.Path(), false)
}

// UploadDir uploads every file below localDir, one at a time, recreating
// the subdirectory layout under the current remote directory. A failed
// file does not stop the rest.
func (e *Engine) UploadDir(ctx context.Context, localDir string) ([]transfer.Session, error) {
	return e.uploadTree(ctx, localDir, e.nav.Path(), false)
}

// UploadHere uploads a file or directory into the shell's working
// directory instead of the browser's, printing progress on the terminal.
func (e *Engine) UploadHere(ctx context.Context, localPath string) ([]transfer.Session, error) {
	dir := e.ShellDir(ctx)
	e.term.Notice(terminal.Yellow, "uploading %s to %s", filepath.Base(localPath), dir)

	info, err := e.local.Stat(localPath)
	if err == nil && info.IsDir() {
		return e.uploadTree(ctx, localPath, dir, true)
	}
	s, err := e.upload(ctx, localPath, dir, true)
	return []transfer.Session{s}, err
}

func (e *Engine) uploadTree(ctx context.Context, localDir, base string, notify bool) ([]transfer.Session, error) {
	files, err := e.local.CollectFileList(localDir)
	if err != nil {
		return nil, err
	}

	list := make([]transfer.Session, 0, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return list, err
		}
		dir := base
		if d := filepath.Dir(rel); d != "." {
			dir = fs.Join(base, filepath.ToSlash(d))
		}
		s, err := e.upload(ctx, filepath.Join(localDir, rel), dir, notify)
		if err != nil {
			Log.Warnln("upload", rel, err)
		}
		list = append(list, s)
	}
	return list, nil
}

func (e *Engine) upload(ctx context.Context, localPath, directory string, notify bool) (transfer.Session, error) {
	f, err := e.local.ReadFile(localPath)
	if err != nil {
		name := filepath.Base(localPath)
		s, stored := e.tracker.RecordFailure(name, directory, transfer.NewError(transfer.ErrLocalIO, name, err.Error()), e.now())
		if !stored {
			Log.Warnf("upload %s still in flight, read failure of %s not recorded", name, localPath)
		}
		metrics.TransferStarted(transfer.Upload.String())
		e.uploadUpdate(s)
		if notify {
			e.term.Notice(terminal.Red, "upload %s failed: %v", name, err)
		}
		return s, err
	}

	e.pairMu.Lock()
	defer e.pairMu.Unlock()

	id := ksuid.New().String()
	s, replaced := e.tracker.BeginUpload(f.Name, uint64(f.Size), directory, id, e.now())
	if replaced {
		Log.Warnln("upload restarted, dropping earlier session", f.Name)
		metrics.TransferFinished(transfer.Upload.String(), "replaced")
	}
	metrics.TransferStarted(transfer.Upload.String())
	e.uploadUpdate(s)

	if err := e.sendEnvelope(codec.NewUploadStart(f.Name, f.Size, directory, id)); err != nil {
		return e.abortUpload(f.Name, transfer.ErrConnection, err)
	}
	if s, err = e.tracker.Activate(f.Name, e.now()); err != nil {
		return s, err
	}
	e.uploadUpdate(s)

	if err := e.sendPayload(ctx, f, notify); err != nil {
		if notify {
			e.term.Notice(terminal.Red, "upload %s failed: %v", f.Name, err)
		}
		switch {
		case transfer.IsInactive(err):
			// cancelled or failed while sending; the server gets no end
			s, _ = e.tracker.Upload(f.Name)
			return s, err
		case ctx.Err() != nil:
			return e.abortUpload(f.Name, transfer.ErrCancelled, err)
		default:
			return e.abortUpload(f.Name, transfer.ErrConnection, err)
		}
	}

	if err := e.sendEnvelope(codec.NewUploadEnd(f.Name, id)); err != nil {
		return e.abortUpload(f.Name, transfer.ErrConnection, err)
	}
	Log.Debugf("upload %s sent, %d bytes", f.Name, f.Size)
	s, _ = e.tracker.Upload(f.Name)
	return s, nil
}

func (e *Engine) sendPayload(ctx context.Context, f *fs.LocalFile, notify bool) error {
	if e.config.UploadMode == Whole {
		return e.sendBlock(ctx, f.Name, f.Data, notify)
	}
	return transfer.Chunks(bytes.NewReader(f.Data), e.config.ChunkSize, func(b []byte) error {
		if err := e.sendBlock(ctx, f.Name, b, notify); err != nil {
			return err
		}
		runtime.Gosched()
		return nil
	})
}

func (e *Engine) sendBlock(ctx context.Context, name string, b []byte, notify bool) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, name)
	}
	if s, ok := e.tracker.Upload(name); !ok || s.Status != transfer.Active {
		return errors.Wrap(transfer.ErrInactive, name)
	}
	if err := e.sendBinary(b); err != nil {
		return err
	}
	metrics.RecordUploadBytes(len(b))

	s, err := e.tracker.Advance(name, uint64(len(b)), e.now())
	if err != nil {
		return err
	}
	e.uploadUpdate(s)
	if notify {
		e.term.Status(terminal.Yellow, "upload %s: %.0f%%", name, s.Progress)
	}
	return nil
}

func (e *Engine) abortUpload(name string, kind transfer.ErrorKind, cause error) (transfer.Session, error) {
	Log.Errorln("upload", name, cause)
	s, ok := e.tracker.FailUpload(name, transfer.NewError(kind, name, cause.Error()), e.now())
	if ok {
		e.uploadUpdate(s)
	} else {
		s, _ = e.tracker.Upload(name)
	}
	return s, cause
}

// CancelUpload fails an unfinished upload. Nothing is sent to the server;
// a payload still being sent stops at the next chunk.
func (e *Engine) CancelUpload(filename string) bool {
	s, ok := e.tracker.CancelUpload(filename, e.now())
	if ok {
		e.uploadUpdate(s)
	}
	return ok
}

// CancelDownload drops the buffer of the most recent download in flight.
// Frames still arriving for it are then ignored.
func (e *Engine) CancelDownload() bool {
	cur, ok := e.tracker.Current()
	if !ok {
		return false
	}
	s, ok := e.tracker.CancelDownload(cur.TransferID, e.now())
	if ok {
		e.takeHint(cur.TransferID)
		e.downloadUpdate(s)
	}
	return ok
}
