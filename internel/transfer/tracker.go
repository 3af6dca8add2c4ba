package transfer

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"wsshell/internel/fs"
)

// Tracker owns the upload registry and the download slots.
//
// Uploads are keyed by filename and never share state. Downloads are keyed
// by the server's transfer id; a server that sends none gets the single
// legacy slot under "".
type Tracker struct {
	mu        sync.Mutex
	uploads   map[string]*Session
	downloads map[string]*Session
	// lastDownload is the slot raw binary frames are appended to.
	lastDownload string
	blockSize    int
}

func NewTracker(blockSize int) *Tracker {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Tracker{
		uploads:   make(map[string]*Session),
		downloads: make(map[string]*Session),
		blockSize: blockSize,
	}
}

// BeginUpload registers a Pending upload, replacing any earlier session
// with the same filename. replaced reports whether that earlier session
// was still in flight.
func (t *Tracker) BeginUpload(filename string, size uint64, directory, requestID string, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.uploads[filename]
	replaced := ok && !old.Status.Terminal()
	n := &Session{
		ID:         filename,
		Name:       filename,
		RequestID:  requestID,
		Direction:  Upload,
		Directory:  directory,
		TotalSize:  size,
		Status:     Pending,
		StartedAt:  now,
		LastActive: now,
	}
	t.uploads[filename] = n
	return n.snapshot(), replaced
}

// RecordFailure registers an upload that failed before anything was sent.
// An unfinished session with the same filename is left alone; the failed
// session is then returned without being stored.
func (t *Tracker) RecordFailure(filename, directory string, err *Error, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &Session{
		ID:         filename,
		Name:       filename,
		Direction:  Upload,
		Directory:  directory,
		StartedAt:  now,
		LastActive: now,
	}
	s.fail(err, now)
	if old, ok := t.uploads[filename]; ok && !old.Status.Terminal() {
		return s.snapshot(), false
	}
	t.uploads[filename] = s
	return s.snapshot(), true
}

// Activate moves a Pending upload to Active once its start envelope is out.
func (t *Tracker) Activate(filename string, now time.Time) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.uploads[filename]
	if !ok {
		return Session{}, errors.Wrap(ErrNoSession, filename)
	}
	if s.Status != Pending {
		return s.snapshot(), errors.Wrap(ErrInactive, filename)
	}
	s.Status = Active
	s.LastActive = now
	return s.snapshot(), nil
}

// Advance records n more payload bytes sent for an Active upload.
func (t *Tracker) Advance(filename string, n uint64, now time.Time) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.uploads[filename]
	if !ok {
		return Session{}, errors.Wrap(ErrNoSession, filename)
	}
	if s.Status != Active {
		return s.snapshot(), errors.Wrap(ErrInactive, filename)
	}
	s.TransferredSize += n
	s.Progress = percent(s.TransferredSize, s.TotalSize)
	s.LastActive = now
	return s.snapshot(), nil
}

// UploadProgress applies a server progress report. Status is untouched and
// terminal sessions ignore late reports.
func (t *Tracker) UploadProgress(filename string, progress float64, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.uploads[filename]
	if !ok || s.Status.Terminal() {
		return Session{}, false
	}
	s.Progress = clamp(progress)
	s.LastActive = now
	return s.snapshot(), true
}

func (t *Tracker) UploadComplete(filename string, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.uploads[filename]
	if !ok || s.Status.Terminal() {
		return Session{}, false
	}
	s.Status = Succeeded
	s.Progress = 100
	s.LastActive = now
	return s.snapshot(), true
}

// FailUpload marks one upload Failed. Other uploads are not touched.
func (t *Tracker) FailUpload(filename string, err *Error, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.uploads[filename]
	if !ok || s.Status.Terminal() {
		return Session{}, false
	}
	s.fail(err, now)
	return s.snapshot(), true
}

func (t *Tracker) CancelUpload(filename string, now time.Time) (Session, bool) {
	return t.FailUpload(filename, NewError(ErrCancelled, filename, "cancelled by user"), now)
}

// Discard forgets an upload, whatever its state.
func (t *Tracker) Discard(filename string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.uploads[filename]
	delete(t.uploads, filename)
	return ok
}

func (t *Tracker) Upload(filename string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.uploads[filename]
	if !ok {
		return Session{}, false
	}
	return s.snapshot(), true
}

// Uploads lists the registry ordered by start time, then filename.
func (t *Tracker) Uploads() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := make([]Session, 0, len(t.uploads))
	for _, s := range t.uploads {
		list = append(list, s.snapshot())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].StartedAt.Before(list[j].StartedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// StartDownload resets the slot for transferID to an empty Active session.
// Any stale buffer in that slot is dropped.
func (t *Tracker) StartDownload(filename string, totalSize uint64, transferID string, now time.Time) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &Session{
		ID:         filename,
		Name:       fs.Base(filename),
		TransferID: transferID,
		Direction:  Download,
		TotalSize:  totalSize,
		Status:     Active,
		StartedAt:  now,
		LastActive: now,
	}
	t.downloads[transferID] = s
	t.lastDownload = transferID
	return s.snapshot()
}

// AppendChunk buffers one encoded chunk. chunkSize is the declared raw size;
// when absent the decoded length is counted instead.
func (t *Tracker) AppendChunk(transferID, content string, chunkSize *uint64, now time.Time) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.downloads[transferID]
	if !ok {
		return Session{}, errors.Wrapf(ErrNoSession, "download %q", transferID)
	}
	n := decodedLen(content)
	if chunkSize != nil {
		n = *chunkSize
	}
	s.parts = append(s.parts, part{text: content})
	s.TransferredSize += n
	s.Progress = percent(s.TransferredSize, s.TotalSize)
	s.LastActive = now
	return s.snapshot(), nil
}

// AppendBinary buffers a raw binary frame on the most recently started
// download. It reports false when no download is waiting for bytes.
func (t *Tracker) AppendBinary(data []byte, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.downloads[t.lastDownload]
	if !ok {
		return Session{}, false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.parts = append(s.parts, part{raw: buf})
	s.TransferredSize += uint64(len(buf))
	s.Progress = percent(s.TransferredSize, s.TotalSize)
	s.LastActive = now
	return s.snapshot(), true
}

// FinishDownload finalizes the slot and always clears it. The artifact is
// nil unless the returned session Succeeded.
func (t *Tracker) FinishDownload(transferID string, now time.Time) (*Artifact, Session, error) {
	t.mu.Lock()
	s, ok := t.downloads[transferID]
	if !ok {
		t.mu.Unlock()
		return nil, Session{}, errors.Wrapf(ErrNoSession, "download %q", transferID)
	}
	t.clearDownload(transferID)
	t.mu.Unlock()

	a, err := assemble(s.Name, s.parts, t.blockSize)
	s.parts = nil
	if err != nil {
		terr := NewError(ErrDecode, s.ID, err.Error())
		s.fail(terr, now)
		return nil, s.snapshot(), terr
	}

	if s.TotalSize > 0 && (s.TransferredSize != s.TotalSize || uint64(a.Size) != s.TotalSize) {
		terr := NewError(ErrIncomplete, s.ID, sizeMismatch(s.TotalSize, s.TransferredSize, a.Size))
		s.fail(terr, now)
		return nil, s.snapshot(), terr
	}

	s.Status = Succeeded
	s.Progress = 100
	s.LastActive = now
	return a, s.snapshot(), nil
}

// FailDownload drops the slot and its buffer, recording err.
func (t *Tracker) FailDownload(transferID string, err *Error, now time.Time) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.downloads[transferID]
	if !ok {
		return Session{}, false
	}
	t.clearDownload(transferID)
	if err.Filename == "" {
		err.Filename = s.ID
	}
	s.fail(err, now)
	return s.snapshot(), true
}

func (t *Tracker) CancelDownload(transferID string, now time.Time) (Session, bool) {
	return t.FailDownload(transferID, NewError(ErrCancelled, "", "cancelled by user"), now)
}

// Current returns the most recently started download still in flight.
func (t *Tracker) Current() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.downloads[t.lastDownload]
	if !ok {
		return Session{}, false
	}
	return s.snapshot(), true
}

func (t *Tracker) Download(transferID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.downloads[transferID]
	if !ok {
		return Session{}, false
	}
	return s.snapshot(), true
}

func (t *Tracker) Downloads() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := make([]Session, 0, len(t.downloads))
	for _, s := range t.downloads {
		list = append(list, s.snapshot())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.Before(list[j].StartedAt) })
	return list
}

// Sweep fails every non-terminal session idle for longer than timeout.
// Timed out downloads release their slot.
func (t *Tracker) Sweep(now time.Time, timeout time.Duration) []Session {
	if timeout <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []Session
	for _, s := range t.uploads {
		if !s.Status.Terminal() && now.Sub(s.LastActive) > timeout {
			s.fail(NewError(ErrTimeout, s.ID, "no activity for "+timeout.String()), now)
			expired = append(expired, s.snapshot())
		}
	}
	for id, s := range t.downloads {
		if now.Sub(s.LastActive) > timeout {
			t.clearDownload(id)
			s.fail(NewError(ErrTimeout, s.ID, "no activity for "+timeout.String()), now)
			expired = append(expired, s.snapshot())
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired
}

func (t *Tracker) clearDownload(transferID string) {
	delete(t.downloads, transferID)
	if t.lastDownload == transferID {
		t.lastDownload = ""
		var latest time.Time
		for id, s := range t.downloads {
			if s.StartedAt.After(latest) || latest.IsZero() {
				t.lastDownload, latest = id, s.StartedAt
			}
		}
	}
}
