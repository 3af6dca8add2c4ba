package shared

import "time"

type EntryKind int

const (
	KFile EntryKind = iota + 1
	KDir
)

func (k EntryKind) String() string {
	switch k {
	case KFile:
		return "file"
	case KDir:
		return "directory"
	default:
		return "unknown"
	}
}

// ParseEntryKind maps the wire "type" of a listing entry. Anything other
// than "directory" is treated as a plain file.
func ParseEntryKind(s string) EntryKind {
	if s == "directory" {
		return KDir
	}
	return KFile
}

type DirectoryEntry struct {
	Name       string
	Kind       EntryKind
	Size       *uint64
	ModifiedAt *time.Time
	// Modified keeps the server's text verbatim when it is not a parseable timestamp.
	Modified string
}

func (e DirectoryEntry) IsDir() bool {
	return e.Kind == KDir
}

type ConnState int

const (
	Connecting ConnState = iota
	Open
	Closed
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
