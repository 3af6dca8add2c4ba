package hash

import (
	"crypto/md5"
	"encoding/hex"
	gohash "hash"
	"sync"

	md5simd "github.com/minio/md5-simd"
	. "wsshell/internel/log"
)

var (
	mu sync.Mutex
	hs md5simd.Server
)

func StartHash() {
	mu.Lock()
	defer mu.Unlock()
	if hs == nil {
		hs = md5simd.NewServer()
	}
}

func EndHash() {
	mu.Lock()
	defer mu.Unlock()
	Log.Debugln("EndHash")
	if hs != nil {
		hs.Close()
		hs = nil
	}
}

// GetHash returns an md5 hasher backed by the simd server when it runs.
// The returned close func must be called when done.
func GetHash() (gohash.Hash, func()) {
	mu.Lock()
	defer mu.Unlock()
	if hs == nil {
		return md5.New(), func() {}
	}
	h := hs.NewHash()
	return h, h.Close
}

func Sum(h gohash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
