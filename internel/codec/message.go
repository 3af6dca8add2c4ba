package codec

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"wsshell/internel/shared"
)

type header struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
}

func (h *header) stamp(tag string) { h.Type = tag }

// Outbound is a client -> server control envelope.
type Outbound interface {
	Tag() string
	stamp(tag string)
}

type ListFiles struct {
	header
	Path string `json:"path"`
}

func (*ListFiles) Tag() string { return shared.ListFiles }

type DownloadRequest struct {
	header
	Filename     string `json:"filename"`
	DownloadPath string `json:"downloadPath,omitempty"`
}

func (*DownloadRequest) Tag() string { return shared.FileDownload }

type UploadStart struct {
	header
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Directory string `json:"directory"`
}

func (*UploadStart) Tag() string { return shared.FileUploadStart }

type UploadEnd struct {
	header
	Filename string `json:"filename"`
}

func (*UploadEnd) Tag() string { return shared.FileUploadEnd }

func NewListFiles(path, requestID string) *ListFiles {
	return &ListFiles{header: header{RequestID: requestID}, Path: path}
}

func NewDownloadRequest(filename, downloadPath, requestID string) *DownloadRequest {
	return &DownloadRequest{header: header{RequestID: requestID}, Filename: filename, DownloadPath: downloadPath}
}

func NewUploadStart(filename string, size int64, directory, requestID string) *UploadStart {
	return &UploadStart{header: header{RequestID: requestID}, Filename: filename, Size: size, Directory: directory}
}

func NewUploadEnd(filename, requestID string) *UploadEnd {
	return &UploadEnd{header: header{RequestID: requestID}, Filename: filename}
}

func Encode(m Outbound) ([]byte, error) {
	m.stamp(m.Tag())
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", m.Tag())
	}
	return buf, nil
}

// server -> client

type FileInfo struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Size     *uint64 `json:"size,omitempty"`
	Modified string  `json:"modified,omitempty"`
}

// Layouts the server is known to format modification times with.
var modifiedLayouts = []string{
	time.RFC3339,
	"Mon Jan 02 15:04:05 MST 2006",
	time.UnixDate,
	"2006-01-02 15:04:05",
}

func (f FileInfo) Entry() shared.DirectoryEntry {
	e := shared.DirectoryEntry{
		Name:     f.Name,
		Kind:     shared.ParseEntryKind(f.Type),
		Size:     f.Size,
		Modified: f.Modified,
	}
	if f.Modified != "" {
		for _, layout := range modifiedLayouts {
			if t, err := time.Parse(layout, f.Modified); err == nil {
				e.ModifiedAt = &t
				break
			}
		}
	}
	return e
}

type FileList struct {
	Path      string     `json:"path,omitempty"`
	Files     []FileInfo `json:"files"`
	RequestID string     `json:"requestId,omitempty"`
}

func (m *FileList) Entries() []shared.DirectoryEntry {
	entries := make([]shared.DirectoryEntry, 0, len(m.Files))
	for _, f := range m.Files {
		entries = append(entries, f.Entry())
	}
	return entries
}

type ErrorMessage struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type DownloadStart struct {
	Filename   string `json:"filename"`
	TotalSize  uint64 `json:"totalSize"`
	TransferID string `json:"transferId,omitempty"`
}

type DownloadChunk struct {
	Content    string  `json:"content"`
	ChunkSize  *uint64 `json:"chunkSize,omitempty"`
	TransferID string  `json:"transferId,omitempty"`
}

type DownloadEnd struct {
	TransferID string `json:"transferId,omitempty"`
}

type UploadProgress struct {
	Filename  string  `json:"filename"`
	Progress  float64 `json:"progress"`
	RequestID string  `json:"requestId,omitempty"`
}

type UploadComplete struct {
	Filename  string `json:"filename"`
	RequestID string `json:"requestId,omitempty"`
}

type UploadError struct {
	Filename  string `json:"filename"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
