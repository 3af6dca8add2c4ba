package engine

import (
	"wsshell/internel/fs"
	"wsshell/internel/shared"
	"wsshell/internel/transfer"
)

// Callbacks report engine events to the presentation layer. Every field is
// optional. Inbound events fire on the Run goroutine; upload updates fire
// on the goroutine that called StartUpload.
type Callbacks struct {
	OnState          func(state shared.ConnState, err error)
	OnListing        func(path string, entries []shared.DirectoryEntry)
	OnUploadUpdate   func(s transfer.Session)
	OnDownloadUpdate func(s transfer.Session)
	OnSaved          func(s transfer.Session, saved *fs.Saved)
	OnError          func(message string)
}

var defaultCallbacks = Callbacks{
	OnState:          func(shared.ConnState, error) {},
	OnListing:        func(string, []shared.DirectoryEntry) {},
	OnUploadUpdate:   func(transfer.Session) {},
	OnDownloadUpdate: func(transfer.Session) {},
	OnSaved:          func(transfer.Session, *fs.Saved) {},
	OnError:          func(string) {},
}

func mergeCallbacks(c *Callbacks) *Callbacks {
	merged := defaultCallbacks
	if c == nil {
		return &merged
	}
	if c.OnState != nil {
		merged.OnState = c.OnState
	}
	if c.OnListing != nil {
		merged.OnListing = c.OnListing
	}
	if c.OnUploadUpdate != nil {
		merged.OnUploadUpdate = c.OnUploadUpdate
	}
	if c.OnDownloadUpdate != nil {
		merged.OnDownloadUpdate = c.OnDownloadUpdate
	}
	if c.OnSaved != nil {
		merged.OnSaved = c.OnSaved
	}
	if c.OnError != nil {
		merged.OnError = c.OnError
	}
	return &merged
}
