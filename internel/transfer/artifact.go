package transfer

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const DefaultBlockSize = 64 * 1024

// Artifact is a finished download held as fixed-size blocks.
type Artifact struct {
	Name   string
	Blocks [][]byte
	Size   int64
}

func (a *Artifact) Reader() io.Reader {
	readers := make([]io.Reader, 0, len(a.Blocks))
	for _, b := range a.Blocks {
		readers = append(readers, bytes.NewReader(b))
	}
	return io.MultiReader(readers...)
}

func (a *Artifact) add(data []byte, blockSize int) {
	for len(data) > 0 {
		n := blockSize
		if n > len(data) {
			n = len(data)
		}
		a.Blocks = append(a.Blocks, data[:n:n])
		a.Size += int64(n)
		data = data[n:]
	}
}

// assemble joins the buffered parts in receipt order. Runs of encoded text
// are concatenated and decoded together, raw parts are taken as they are.
func assemble(name string, parts []part, blockSize int) (*Artifact, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	a := &Artifact{Name: name}

	var text strings.Builder
	flush := func() error {
		if text.Len() == 0 {
			return nil
		}
		err := decodeJoined(text.String(), func(b []byte) { a.add(b, blockSize) })
		text.Reset()
		return err
	}

	for _, p := range parts {
		if p.raw != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			a.add(p.raw, blockSize)
			continue
		}
		text.WriteString(p.text)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return a, nil
}

// decodeJoined decodes base64 text that may be several padded encodings
// glued together, as happens when each chunk was encoded on its own.
// Every run of '=' closes one segment.
func decodeJoined(s string, emit func([]byte)) error {
	for len(s) > 0 {
		end := len(s)
		if i := strings.IndexByte(s, '='); i >= 0 {
			end = i
			for end < len(s) && s[end] == '=' {
				end++
			}
		}
		seg := s[:end]
		s = s[end:]

		buf, err := base64.StdEncoding.DecodeString(seg)
		if err != nil {
			return errors.Wrap(err, "base64 decode")
		}
		if len(buf) > 0 {
			emit(buf)
		}
	}
	return nil
}

// decodedLen is the exact byte length encoded by one padded base64 chunk.
func decodedLen(s string) uint64 {
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	n := uint64(len(s)) / 4 * 3
	switch {
	case strings.HasSuffix(s, "=="):
		n -= 2
	case strings.HasSuffix(s, "="):
		n--
	}
	return n
}
