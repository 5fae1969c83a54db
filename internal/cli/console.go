package cli

import (
	"fmt"
	"io"
	"sync"

	"paas-deployer/internal/pkg/logger"
)

// consoleSink prints the deployment log for a CI console.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
	w   io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	s := &consoleSink{out: out}
	s.w = logger.NewLineWriter(func(line string) {
		s.print(dimStyle.Render("  " + line))
	})
	return s
}

func (s *consoleSink) Info(msg string) {
	s.print(infoStyle.Render("[deploy]") + " " + msg)
}

func (s *consoleSink) Error(msg string) {
	s.print(errorStyle.Render("[error]") + " " + msg)
}

func (s *consoleSink) Writer() io.Writer { return s.w }

func (s *consoleSink) print(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}
