package engine

import (
	"context"
	"regexp"
	"strings"
	"time"

	"wsshell/internel/fs"
	. "wsshell/internel/log"
	"wsshell/internel/shared"
)

// A line of shell output holding nothing but an absolute path.
var pwdLine = regexp.MustCompile(`(?m)^(/[^\r\n\x1b]*?)[ \t]*\r?\n`)

// ShellDir asks the remote shell for its working directory by typing pwd.
// Without an answer within ShellDirTimeout it returns the default path.
func (e *Engine) ShellDir(ctx context.Context) string {
	found := make(chan string, 1)
	var seen strings.Builder
	stop := e.term.Watch(func(b []byte) bool {
		seen.Write(b)
		m := pwdLine.FindStringSubmatch(seen.String())
		if m == nil {
			return false
		}
		found <- m[1]
		return true
	})
	defer stop()

	if err := e.sendText([]byte("pwd\r")); err != nil {
		Log.Warnln("ask shell directory error", err)
		return shared.DefaultPath
	}

	timer := time.NewTimer(e.config.ShellDirTimeout)
	defer timer.Stop()
	select {
	case dir := <-found:
		return fs.Normalize(dir)
	case <-timer.C:
		Log.Debugln("no pwd answer, using", shared.DefaultPath)
	case <-ctx.Done():
	}
	return shared.DefaultPath
}
