package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	h "wsshell/internel/hash"
	. "wsshell/internel/log"
)

func main() {
	conf, err := ParseConfig(os.Args[1:])
	if err != nil {
		if fe, ok := err.(*flags.Error); ok {
			if fe.Type == flags.ErrHelp {
				os.Exit(0)
			}
		} else {
			fmt.Println(err.Error())
		}
		os.Exit(1)
	}
	InitLogger(conf.LogLevel)
	defer Sync()

	h.StartHash()
	defer h.EndHash()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ts := time.Now()
	if err := doSession(ctx, conf); err != nil {
		Log.Errorln("session error", err)
		Sync()
		os.Exit(1)
	}
	Log.Infof("Session End %v ms", time.Now().Sub(ts).Milliseconds())
}
