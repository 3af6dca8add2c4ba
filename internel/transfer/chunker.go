package transfer

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

const DefaultChunkSize = 64 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, DefaultChunkSize)
		return &b
	},
}

// Chunks reads r in fixed-size blocks and hands each one to consumer in
// order. Only the last block may be shorter. consumer must not retain the
// slice after it returns.
func Chunks(r io.Reader, size int, consumer func([]byte) error) error {
	if r == nil {
		return errors.New("reader required")
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	var buffer []byte
	if size == DefaultChunkSize {
		bfp := bufferPool.Get().(*[]byte)
		defer bufferPool.Put(bfp)
		buffer = *bfp
	} else {
		buffer = make([]byte, size)
	}

	for {
		n, err := io.ReadFull(r, buffer)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return errors.Wrapf(err, "failed reading data block")
		}

		// Guard against empty reads so an empty block is never emitted.
		if n > 0 {
			if err := consumer(buffer[:n]); err != nil {
				return err
			}
		}

		if err != nil {
			return nil
		}
	}
}
