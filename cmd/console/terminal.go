package main

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/juju/errors"
	"golang.org/x/term"
)

// terminal puts stdin into raw mode and forwards every byte read to Bytes.
// Only the main loop touches the interpreter; this goroutine never does.
type terminal struct {
	Bytes chan byte

	fd       int
	oldState *term.State
	nonblock bool
	stopCh   chan struct{}
	done     chan struct{}
	stopped  sync.Once
}

func newTerminal() *terminal {
	return &terminal{
		Bytes:  make(chan byte, 64),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start enters raw mode and begins reading. On error the terminal is left
// as it was.
func (t *terminal) Start() error {
	t.fd = int(os.Stdin.Fd())
	if !term.IsTerminal(t.fd) {
		close(t.done)
		return errors.NotSupportedf("console without a terminal")
	}

	oldState, err := term.MakeRaw(t.fd)
	if err != nil {
		close(t.done)
		return errors.Annotate(err, "raw mode")
	}
	t.oldState = oldState

	if err := syscall.SetNonblock(t.fd, true); err != nil {
		_ = term.Restore(t.fd, t.oldState)
		t.oldState = nil
		close(t.done)
		return errors.Annotate(err, "non-blocking stdin")
	}
	t.nonblock = true

	go t.read()
	return nil
}

func (t *terminal) read() {
	defer close(t.done)
	buf := make([]byte, 16)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		n, err := syscall.Read(t.fd, buf)
		for _, b := range buf[:max(n, 0)] {
			select {
			case t.Bytes <- b:
			case <-t.stopCh:
				return
			}
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || (err == nil && n == 0) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			logger.Debugf("stdin: %v", err)
			return
		}
	}
}

// Stop ends the reader and restores the terminal. It is safe to call more
// than once.
func (t *terminal) Stop() {
	t.stopped.Do(func() {
		close(t.stopCh)
	})
	<-t.done
	if t.nonblock {
		_ = syscall.SetNonblock(t.fd, false)
		t.nonblock = false
	}
	if t.oldState != nil {
		_ = term.Restore(t.fd, t.oldState)
		t.oldState = nil
	}
}

// Width returns the terminal width in columns, or 0 if unknown.
func (t *terminal) Width() int {
	w, _, err := term.GetSize(t.fd)
	if err != nil {
		return 0
	}
	return w
}
