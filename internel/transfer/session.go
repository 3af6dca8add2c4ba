package transfer

import "time"

type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

type Status int

const (
	Pending Status = iota
	Active
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Session is the tracked state of one transfer. The tracker hands out
// copies; the buffered download parts never leave it.
type Session struct {
	// ID is the filename the session is keyed by (the remote path for downloads).
	ID         string
	Name       string
	TransferID string
	RequestID  string
	Direction  Direction
	Directory  string

	TotalSize       uint64
	TransferredSize uint64
	Progress        float64
	Status          Status
	Err             *Error

	StartedAt  time.Time
	LastActive time.Time

	parts []part
}

// part is one received download chunk, kept encoded until finalization.
type part struct {
	text string
	raw  []byte
}

func (s *Session) snapshot() Session {
	c := *s
	c.parts = nil
	return c
}

func (s *Session) fail(err *Error, now time.Time) {
	s.Status = Failed
	s.Err = err
	s.LastActive = now
	s.parts = nil
}

// percent returns done/total as a percentage clamped to [0,100]. An empty
// transfer counts as complete once anything has been recorded for it.
func percent(done, total uint64) float64 {
	if total == 0 {
		return 100
	}
	return clamp(float64(done) / float64(total) * 100)
}

func clamp(p float64) float64 {
	switch {
	case p < 0 || p != p:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
