package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/andriawan/siaran/internal/metrics"
)

// ErrClosed is returned by Append once the sink has been closed. Fragments
// arriving after close are dropped, not an error condition for the caller.
var ErrClosed = errors.New("recording sink is closed")

// Sink is an append-only byte sink for one recording file. Appends are
// serialized by the mutex: the gateway read loop is the only writer, but a
// pre-empting session may close the sink from another goroutine.
type Sink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open creates the recording file. The directory must already exist; open
// failures surface to the caller, which treats them as a degraded (live but
// unrecorded) session rather than a fatal error.
func Open(dir, filename string) (*Sink, error) {
	path := filepath.Join(dir, filename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		metrics.SinkOpenFailuresTotal.Inc()
		return nil, fmt.Errorf("failed to open recording file %s: %w", path, err)
	}
	return &Sink{path: path, file: file}, nil
}

// Append writes one audio fragment. Returns ErrClosed after Close; any other
// error means this fragment was lost but the sink stays usable.
func (s *Sink) Append(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrClosed
	}

	n, err := s.file.Write(data)
	metrics.SinkBytesWrittenTotal.Add(float64(n))
	if err != nil {
		metrics.SinkWriteErrorsTotal.Inc()
		return fmt.Errorf("failed to append %d bytes to %s: %w", len(data), s.path, err)
	}
	return nil
}

// Close releases the file handle. Safe to call multiple times.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	file := s.file
	s.file = nil
	return file.Close()
}

// Path returns the full path of the recording file.
func (s *Sink) Path() string {
	return s.path
}
