// Package backendtest provides scripted backends for testing acquisition logic without any network access.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/alanbriolat/video-acquirer"
)

// An Outcome scripts what one attempt does.
type Outcome struct {
	// MetadataErr fails ResolveMetadata.
	MetadataErr error
	// Encodings returned by ResolveMetadata; nil means a single H.264 encoding.
	Encodings []video_acquirer.Encoding
	// FetchErr fails FetchEncoding.
	FetchErr error
	// Components are the sizes of the components to write; nil means a single component of 1000 bytes. Each is
	// reported through the sink in a few steps, then merged into one file.
	Components []int64
	// SkipFinalize leaves the merged file for the completion detector to find.
	SkipFinalize bool
	// IntermediateOnly writes the component files but never merges them.
	IntermediateOnly bool
}

var DefaultEncodings = []video_acquirer.Encoding{
	{ID: "137", Container: "mp4", VideoCodec: "avc1.640028", AudioCodec: "none", Height: 1080},
	{ID: "140", Container: "m4a", VideoCodec: "none", AudioCodec: "mp4a.40.2"},
}

// ScriptFunc decides the Outcome of an attempt. strategy is "" for backends without strategies.
type ScriptFunc func(strategy string, locator video_acquirer.Locator) Outcome

// Backend is a scripted StrategyBackend that writes its output into an afero.Fs.
type Backend struct {
	name   string
	fs     afero.Fs
	script ScriptFunc

	mu    sync.Mutex
	calls []string
}

var _ video_acquirer.StrategyBackend = (*Backend)(nil)

func New(name string, fs afero.Fs, script ScriptFunc) *Backend {
	return &Backend{name: name, fs: fs, script: script}
}

func (b *Backend) Name() string {
	return b.name
}

// Calls lists every ResolveMetadata or (for the non-strategy path) FetchEncoding call as "strategy|locator-form".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Backend) record(strategy string, locator video_acquirer.Locator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("%s|%s", strategy, locator.Form))
}

func (b *Backend) WithStrategy(strategy video_acquirer.Strategy) video_acquirer.Backend {
	return &strategyBackend{Backend: b, strategy: strategy.Name}
}

// ResolveMetadata and FetchEncoding on the Backend itself behave as the strategy-less secondary path.
func (b *Backend) ResolveMetadata(ctx context.Context, locator video_acquirer.Locator) (*video_acquirer.Metadata, error) {
	return b.resolve(ctx, "", locator, false)
}

func (b *Backend) FetchEncoding(ctx context.Context, req video_acquirer.FetchRequest, sink video_acquirer.Sink) (*video_acquirer.FetchResult, error) {
	b.record("", req.Locator)
	return b.fetch(ctx, "", req, sink)
}

func (b *Backend) resolve(ctx context.Context, strategy string, locator video_acquirer.Locator, record bool) (*video_acquirer.Metadata, error) {
	if record {
		b.record(strategy, locator)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcome := b.script(strategy, locator)
	if outcome.MetadataErr != nil {
		return nil, outcome.MetadataErr
	}
	encodings := outcome.Encodings
	if encodings == nil {
		encodings = DefaultEncodings
	}
	return &video_acquirer.Metadata{ID: "abc123", Title: "Test Video", Encodings: encodings}, nil
}

func (b *Backend) fetch(ctx context.Context, strategy string, req video_acquirer.FetchRequest, sink video_acquirer.Sink) (*video_acquirer.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcome := b.script(strategy, req.Locator)
	if outcome.FetchErr != nil {
		return nil, outcome.FetchErr
	}
	components := outcome.Components
	if components == nil {
		components = []int64{1000}
	}
	sink.Plan(components)
	var total int64
	for i, size := range components {
		name := fmt.Sprintf("abc123.f%d.mp4", i+1)
		for _, n := range []int64{size / 4, size / 2, size} {
			sink.Progress(name, n, size)
		}
		if err := afero.WriteFile(b.fs, filepath.Join(req.ScratchDir, name), make([]byte, size), 0644); err != nil {
			return nil, err
		}
		sink.ComponentFinished(name)
		total += size
	}
	if outcome.IntermediateOnly {
		return &video_acquirer.FetchResult{}, nil
	}
	final := filepath.Join(req.ScratchDir, "abc123.mp4")
	if err := afero.WriteFile(b.fs, final, make([]byte, total), 0644); err != nil {
		return nil, err
	}
	for i := range components {
		_ = b.fs.Remove(filepath.Join(req.ScratchDir, fmt.Sprintf("abc123.f%d.mp4", i+1)))
	}
	if outcome.SkipFinalize {
		return &video_acquirer.FetchResult{Title: "Test Video"}, nil
	}
	sink.Finalized(final)
	return &video_acquirer.FetchResult{Path: final, Title: "Test Video"}, nil
}

type strategyBackend struct {
	*Backend
	strategy string
}

func (b *strategyBackend) ResolveMetadata(ctx context.Context, locator video_acquirer.Locator) (*video_acquirer.Metadata, error) {
	return b.resolve(ctx, b.strategy, locator, true)
}

func (b *strategyBackend) FetchEncoding(ctx context.Context, req video_acquirer.FetchRequest, sink video_acquirer.Sink) (*video_acquirer.FetchResult, error) {
	return b.fetch(ctx, b.strategy, req, sink)
}

// Always scripts the same outcome for every attempt.
func Always(outcome Outcome) ScriptFunc {
	return func(string, video_acquirer.Locator) Outcome {
		return outcome
	}
}

// Fail is an Outcome failing metadata resolution with msg.
func Fail(msg string) Outcome {
	return Outcome{MetadataErr: errors.New(msg)}
}

// Sleeper records requested sleeps instead of sleeping.
type Sleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *Sleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// Total is the sum of all requested sleeps.
func (s *Sleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Slept() {
		total += d
	}
	return total
}

// MidpointRand is a deterministic RandFunc-compatible function returning the middle of the range.
func MidpointRand(min time.Duration, max time.Duration) time.Duration {
	return min + (max-min)/2
}
