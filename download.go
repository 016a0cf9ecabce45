package video_acquirer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// A ComponentWriter ignores the data written to it but reports the running byte count to a Sink. Allows progress
// tracking using io.MultiWriter (but ensure it is the last writer to avoid counting failed writes).
type ComponentWriter struct {
	sink       Sink
	component  string
	expected   int64
	downloaded int64
}

// NewComponentWriter creates a ComponentWriter reporting as component, with expected bytes (0 if unknown).
func NewComponentWriter(sink Sink, component string, expected int64) *ComponentWriter {
	if sink == nil {
		sink = NopSink{}
	}
	return &ComponentWriter{sink: sink, component: component, expected: expected}
}

func (w *ComponentWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	w.downloaded += int64(n)
	w.sink.Progress(w.component, w.downloaded, w.expected)
	return n, nil
}

// Downloaded returns how many bytes have been written so far.
func (w *ComponentWriter) Downloaded() int64 {
	return w.downloaded
}

// SaveStream copies stream to path in fs as a single component, reporting progress to sink. The copy stops with
// the context's error once ctx is done.
func SaveStream(ctx context.Context, fs afero.Fs, path string, stream io.Reader, expected int64, sink Sink) (int64, error) {
	if sink == nil {
		sink = NopSink{}
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return 0, err
	}
	f, err := fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	component := filepath.Base(path)
	sink.Plan([]int64{expected})
	w := NewComponentWriter(sink, component, expected)
	if _, err = io.Copy(io.MultiWriter(f, w), NewContextReader(ctx, stream)); err != nil {
		return w.Downloaded(), fmt.Errorf("failed to save stream: %w", err)
	}
	if err := f.Close(); err != nil {
		return w.Downloaded(), err
	}
	sink.ComponentFinished(component)
	return w.Downloaded(), nil
}
