// Package browse keeps the remote directory cursor of the file browser.
package browse

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"wsshell/internel/codec"
	"wsshell/internel/fs"
	"wsshell/internel/shared"
)

// Send puts one control envelope on the connection.
type Send func(codec.Outbound) error

// Navigator owns exactly one current remote path and the last listing
// received for it. Listings replace the entry set wholesale.
type Navigator struct {
	mu      sync.Mutex
	send    Send
	path    string
	entries []shared.DirectoryEntry
	pending string
	loading bool
}

func NewNavigator(initial string, send Send) *Navigator {
	if initial == "" {
		initial = shared.DefaultPath
	}
	return &Navigator{send: send, path: fs.Normalize(initial)}
}

func (n *Navigator) Path() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *Navigator) Entries() []shared.DirectoryEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]shared.DirectoryEntry, len(n.entries))
	copy(out, n.entries)
	return out
}

func (n *Navigator) Loading() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loading
}

// Request asks for a listing of the current path. Each request gets a
// fresh id; replies are not coalesced.
func (n *Navigator) Request() error {
	n.mu.Lock()
	id := ksuid.New().String()
	n.pending = id
	n.loading = true
	msg := codec.NewListFiles(n.path, id)
	n.mu.Unlock()

	if err := n.send(msg); err != nil {
		n.mu.Lock()
		n.loading = false
		n.mu.Unlock()
		return errors.Wrap(err, "request listing")
	}
	return nil
}

// OnListing installs a listing reply and returns the path it applies to.
// A reply echoing another path, or an id other than the latest request,
// is stale and is dropped; replies echoing neither are taken in arrival
// order.
func (n *Navigator) OnListing(m *codec.FileList) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if m.Path != "" && fs.Normalize(m.Path) != n.path {
		return "", false
	}
	if m.RequestID != "" && n.pending != "" && m.RequestID != n.pending {
		return "", false
	}
	n.entries = m.Entries()
	n.loading = false
	return n.path, true
}

// OnError clears the loading flag after the server rejected a request.
func (n *Navigator) OnError() {
	n.mu.Lock()
	n.loading = false
	n.mu.Unlock()
}

// Descend enters the named entry of the current listing. Only directories
// move the cursor; for files (or unknown names) it returns false.
func (n *Navigator) Descend(name string) (bool, error) {
	n.mu.Lock()
	var target *shared.DirectoryEntry
	for i := range n.entries {
		if n.entries[i].Name == name {
			target = &n.entries[i]
			break
		}
	}
	if target == nil || !target.IsDir() {
		n.mu.Unlock()
		return false, nil
	}
	n.path = fs.Join(n.path, name)
	n.mu.Unlock()

	return true, n.Request()
}

// ChangeDirectory moves to p, absolute or relative to the current path.
func (n *Navigator) ChangeDirectory(p string) error {
	n.mu.Lock()
	n.path = fs.Resolve(n.path, p)
	n.mu.Unlock()
	return n.Request()
}

func (n *Navigator) Up() error {
	return n.ChangeDirectory("..")
}

// Resolve returns the absolute remote path of name inside the current directory.
func (n *Navigator) Resolve(name string) string {
	return fs.Resolve(n.Path(), name)
}
