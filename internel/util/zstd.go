package util

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	. "wsshell/internel/log"
)

var encoderPool = sync.Pool{
	New: func() interface{} {
		writer, err := zstd.NewWriter(nil)
		if err != nil {
			Log.Errorln("Zstd NewWriter", err)
		}
		return writer
	},
}

// ZstdCopy compresses everything from src into dst and returns the number
// of uncompressed bytes consumed.
func ZstdCopy(dst io.Writer, src io.Reader) (int64, error) {
	writer := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(writer)
	writer.Reset(dst)

	n, err := io.Copy(writer, src)
	if err != nil {
		Log.Debugln("Zstd Write err", err)
		_ = writer.Close()
		return n, errors.Wrap(err, "zstd write")
	}
	if err := writer.Close(); err != nil {
		Log.Debugln("Zstd Close err", err)
		return n, errors.Wrap(err, "zstd close")
	}
	return n, nil
}
