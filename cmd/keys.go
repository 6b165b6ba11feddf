package main

import (
	"os"
	"sync"

	"github.com/richard-senior/leaguesim/internal/logger"
	"golang.org/x/term"
)

// watchKeys puts an interactive stdin into raw mode and calls cancel when q,
// Q or ctrl-c is pressed. The returned function restores the terminal and may
// be called more than once. A non terminal stdin is left alone.
func watchKeys(in *os.File, cancel func()) func() {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		logger.Warn("Could not switch the terminal to raw mode", err)
		return func() {}
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if err != nil {
				return
			}
			if n == 1 && isStopKey(buf[0]) {
				logger.Info("Stop requested from the keyboard")
				cancel()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := term.Restore(fd, state); err != nil {
				logger.Warn("Could not restore the terminal", err)
			}
		})
	}
}

func isStopKey(b byte) bool {
	return b == 'q' || b == 'Q' || b == 3
}
