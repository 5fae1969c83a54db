package logger

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Sink receives the human readable deployment log. Writer is used for raw
// remote output (git progress, SSH stdout/stderr).
type Sink interface {
	Info(msg string)
	Error(msg string)
	Writer() io.Writer
}

type zapSink struct {
	log *Logger
	w   io.Writer
}

// NewZapSink forwards deployment lines to l. Raw output is logged line by
// line at info level.
func NewZapSink(l *Logger) Sink {
	s := &zapSink{log: l}
	s.w = NewLineWriter(func(line string) { l.Infow(line, "source", "remote") })
	return s
}

func (s *zapSink) Info(msg string)   { s.log.Infow(msg, "source", "deploy") }
func (s *zapSink) Error(msg string)  { s.log.Errorw(msg, "source", "deploy") }
func (s *zapSink) Writer() io.Writer { return s.w }

type nopSink struct{}

func (nopSink) Info(string)       {}
func (nopSink) Error(string)      {}
func (nopSink) Writer() io.Writer { return io.Discard }

// Nop discards everything.
var Nop Sink = nopSink{}

// Recorder keeps every Info/Error line in order and forwards it to next.
type Recorder struct {
	next  Sink
	mu    sync.Mutex
	steps []string
	w     io.Writer
}

func NewRecorder(next Sink) *Recorder {
	if next == nil {
		next = Nop
	}
	r := &Recorder{next: next}
	r.w = next.Writer()
	return r
}

func (r *Recorder) Info(msg string) {
	r.append(msg)
	r.next.Info(msg)
}

func (r *Recorder) Error(msg string) {
	r.append("ERROR: " + msg)
	r.next.Error(msg)
}

func (r *Recorder) Writer() io.Writer { return r.w }

func (r *Recorder) Steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.steps))
	copy(out, r.steps)
	return out
}

func (r *Recorder) append(msg string) {
	r.mu.Lock()
	r.steps = append(r.steps, msg)
	r.mu.Unlock()
}

type multiSink struct {
	sinks []Sink
	w     *multiWriter
}

// Multi fans every line out to all sinks.
func Multi(sinks ...Sink) Sink {
	writers := make([]io.Writer, 0, len(sinks))
	for _, s := range sinks {
		writers = append(writers, s.Writer())
	}
	return &multiSink{sinks: sinks, w: &multiWriter{writers: writers}}
}

func (m *multiSink) Info(msg string) {
	for _, s := range m.sinks {
		s.Info(msg)
	}
}

func (m *multiSink) Error(msg string) {
	for _, s := range m.sinks {
		s.Error(msg)
	}
}

func (m *multiSink) Writer() io.Writer { return m.w }

// Progress forwards stage updates to the sinks that track progress.
func (m *multiSink) Progress(stage string, percent int) {
	for _, s := range m.sinks {
		if p, ok := s.(interface{ Progress(string, int) }); ok {
			p.Progress(stage, percent)
		}
	}
}

type multiWriter struct {
	writers []io.Writer
}

func (m *multiWriter) Write(p []byte) (int, error) {
	for _, w := range m.writers {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (m *multiWriter) Flush() {
	for _, w := range m.writers {
		Flush(w)
	}
}

// Flush emits any partial line buffered by w.
func Flush(w io.Writer) {
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
}

// LineWriter splits raw output into lines. Both \n and \r end a line, so
// git progress updates show up one per line. A fragment without a line
// ending is held until more output arrives or Flush is called.
type LineWriter struct {
	mu   sync.Mutex
	emit func(string)
	buf  []byte
}

func NewLineWriter(emit func(string)) *LineWriter {
	return &LineWriter{emit: emit}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.send(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.send(string(w.buf))
	w.buf = nil
}

func (w *LineWriter) send(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	w.emit(line)
}
