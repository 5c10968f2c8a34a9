package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

const flushInterval = 500 * time.Millisecond

// asyncWriter moves log I/O off the caller goroutine. Lines are fanned out to
// every sink through one buffered writer and flushed periodically and on Close.
type asyncWriter struct {
	queue chan []byte
	done  chan struct{}
	out   *bufio.Writer

	closeMu sync.RWMutex
	closed  bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	var sinks []io.Writer
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	w := &asyncWriter{
		queue: make(chan []byte, 1024),
		done:  make(chan struct{}),
		out:   bufio.NewWriterSize(io.MultiWriter(sinks...), bufSize),
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.record(w.out.Flush())
				return
			}
			_, err := w.out.Write(line)
			w.record(err)
		case <-ticker.C:
			w.record(w.out.Flush())
		}
	}
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// Write enqueues a copy of p. It blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return errors.New("logger: writer closed")
	}
	if err := w.firstErr(); err != nil {
		return err
	}
	w.queue <- append([]byte(nil), p...)
	return nil
}

// Close drains queued lines, flushes sinks and reports the first write error.
func (w *asyncWriter) Close() error {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.closeMu.Unlock()

	<-w.done
	return w.firstErr()
}
