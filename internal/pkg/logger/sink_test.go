package logger

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapSinkSplitsRawOutput(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(New(zap.New(core)))

	sink.Info("cloning repo")
	fmt.Fprint(sink.Writer(), "remote: line one\r\nremote: line two\n\n")
	sink.Error("push rejected")

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	want := []string{"cloning repo", "remote: line one", "remote: line two", "push rejected"}
	for i, msg := range want {
		if entries[i].Message != msg {
			t.Fatalf("entry %d: expected %q, got %q", i, msg, entries[i].Message)
		}
	}
	if entries[3].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level for last entry, got %s", entries[3].Level)
	}
}

func TestRecorderKeepsOrder(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := NewRecorder(NewZapSink(New(zap.New(core))))

	rec.Info("first")
	rec.Error("second")
	rec.Info("third")

	steps := rec.Steps()
	want := []string{"first", "ERROR: second", "third"}
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %v", len(want), steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("step %d: expected %q, got %q", i, want[i], steps[i])
		}
	}
	if logs.Len() != 3 {
		t.Fatalf("expected lines forwarded to zap, got %d", logs.Len())
	}
}

func TestMultiFansOut(t *testing.T) {
	a := NewRecorder(Nop)
	b := NewRecorder(Nop)
	m := Multi(a, b)

	m.Info("hello")
	m.Error("boom")

	for _, r := range []*Recorder{a, b} {
		if got := len(r.Steps()); got != 2 {
			t.Fatalf("expected 2 steps, got %d", got)
		}
	}
}

func TestLineWriterJoinsChunkedOutput(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	fmt.Fprint(w, "Stopping app")
	fmt.Fprint(w, "lication\nActivation com")
	fmt.Fprint(w, "plete\n")
	fmt.Fprint(w, "Counting objects:  50% (1/2)\rCounting objects: 100% (2/2)\r\n")
	fmt.Fprint(w, "Done")

	want := []string{"Stopping application", "Activation complete", "Counting objects:  50% (1/2)", "Counting objects: 100% (2/2)"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, lines)
	}

	Flush(w)
	if got := lines[len(lines)-1]; got != "Done" {
		t.Fatalf("expected flushed fragment, got %q", got)
	}
	Flush(w)
	if len(lines) != len(want)+1 {
		t.Fatalf("second flush emitted again: %q", lines)
	}
}

type progressSink struct {
	*Recorder
	stages []string
}

func (p *progressSink) Progress(stage string, percent int) {
	p.stages = append(p.stages, fmt.Sprintf("%s:%d", stage, percent))
}

func TestMultiForwardsProgressAndFlush(t *testing.T) {
	tracked := &progressSink{Recorder: NewRecorder(Nop)}
	var raw []string
	console := NewRecorder(nil)
	core, logs := observer.New(zapcore.InfoLevel)
	m := Multi(tracked, NewZapSink(New(zap.New(core))), console)

	m.(interface{ Progress(string, int) }).Progress("clone", 45)
	if len(tracked.stages) != 1 || tracked.stages[0] != "clone:45" {
		t.Fatalf("unexpected stages %v", tracked.stages)
	}

	fmt.Fprint(m.Writer(), "remote: half")
	if logs.Len() != 0 {
		t.Fatalf("partial line logged early")
	}
	Flush(m.Writer())
	for _, e := range logs.AllUntimed() {
		raw = append(raw, e.Message)
	}
	if len(raw) != 1 || raw[0] != "remote: half" {
		t.Fatalf("expected flushed line, got %v", raw)
	}
}
