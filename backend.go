package video_acquirer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/video-acquirer/generic"
)

var (
	ErrDuplicateBackend = errors.New("duplicate backend name")
	ErrInvalidBackend   = errors.New("invalid backend")
	ErrUnknownBackend   = errors.New("unknown backend")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// An Encoding is one format the media service offers for an asset.
type Encoding struct {
	ID         string
	Container  string
	VideoCodec string
	AudioCodec string
	Height     int
	// Size is the expected size in bytes, or 0 if unknown.
	Size int64
}

func (e Encoding) HasVideo() bool {
	return e.VideoCodec != "" && e.VideoCodec != "none"
}

func (e Encoding) HasAudio() bool {
	return e.AudioCodec != "" && e.AudioCodec != "none"
}

// Metadata is what a Backend knows about an asset before fetching it.
type Metadata struct {
	ID        string
	Title     string
	Encodings []Encoding
}

// A FetchRequest describes one fetch attempt.
type FetchRequest struct {
	Locator  Locator
	Quality  string
	Selector string
	// ScratchDir is the directory the backend should write into; it is owned by this attempt only.
	ScratchDir string
	CookieFile string
}

// FetchResult is what a backend reports once it has stopped writing.
type FetchResult struct {
	// Path of the finished file, if the backend knows it. Empty means the caller must find it in ScratchDir.
	Path  string
	Title string
}

// A Sink receives progress from a running fetch. Implementations must be safe for concurrent use.
type Sink interface {
	// Plan announces the expected sizes of the components about to be fetched (0 for unknown).
	Plan(sizes []int64)
	// Progress reports bytes received so far for a named component, and its total if known (else 0).
	Progress(component string, downloaded int64, total int64)
	ComponentFinished(component string)
	// Finalized reports the path of the finished artifact.
	Finalized(path string)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Plan([]int64)                  {}
func (NopSink) Progress(string, int64, int64) {}
func (NopSink) ComponentFinished(string)      {}
func (NopSink) Finalized(string)              {}

// A Backend is a mechanism for resolving and fetching media.
type Backend interface {
	Name() string
	ResolveMetadata(ctx context.Context, locator Locator) (*Metadata, error)
	FetchEncoding(ctx context.Context, req FetchRequest, sink Sink) (*FetchResult, error)
}

// A StrategyBackend can present different client identities, and so participates in the strategy chain.
type StrategyBackend interface {
	Backend
	WithStrategy(strategy Strategy) Backend
}

// A BackendFactory creates a Backend from the shared options.
type BackendFactory func(opts BackendOptions) (Backend, error)

// BackendOptions are passed to every BackendFactory.
type BackendOptions struct {
	// Binary is the path of the external extraction tool, for backends that use one.
	Binary     string
	CookieFile string
}

// A BackendRegistration names a BackendFactory and orders it relative to others.
type BackendRegistration struct {
	Name string
	New  BackendFactory
	// Priority of the backend, lower (including negative) means tried earlier.
	Priority int16
}

func (r BackendRegistration) WithPriority(priority int16) BackendRegistration {
	r.Priority = priority
	return r
}

// A BackendRegistry is a collection of backend factories.
type BackendRegistry struct {
	backends   []*BackendRegistration
	backendMap map[string]*BackendRegistration
}

// Add registers a BackendRegistration. Name and New must be set, and Name must be unique within the registry.
func (r *BackendRegistry) Add(b BackendRegistration) error {
	if r.backendMap == nil {
		r.backendMap = make(map[string]*BackendRegistration)
	}
	if b.Name == "" || b.New == nil {
		return ErrInvalidBackend
	}
	if _, ok := r.backendMap[b.Name]; ok {
		return ErrDuplicateBackend
	}
	r.backendMap[b.Name] = &b
	r.backends = append(r.backends, r.backendMap[b.Name])
	r.sortByPriority()
	return nil
}

// CreatePriority is a shortcut for Add(BackendRegistration{Name: ..., New: ..., Priority: ...}).
func (r *BackendRegistry) CreatePriority(name string, f BackendFactory, priority int16) error {
	return r.Add(BackendRegistration{
		Name:     name,
		New:      f,
		Priority: priority,
	})
}

// List returns the names of registered backends in priority order.
func (r *BackendRegistry) List() []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name)
	}
	return names
}

// Build creates a named backend.
func (r *BackendRegistry) Build(name string, opts BackendOptions) (Backend, error) {
	if b, ok := r.backendMap[name]; ok {
		return b.New(opts)
	} else {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// BuildAll creates every registered backend in priority order. Backends that fail to build are skipped; the
// combined error is returned alongside whatever did build.
func (r *BackendRegistry) BuildAll(opts BackendOptions) ([]Backend, error) {
	var result error
	var built []Backend
	for _, b := range r.backends {
		if backend, err := b.New(opts); err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", b.Name)))
		} else {
			built = append(built, backend)
		}
	}
	return built, result
}

// MustAdd wraps Add but panics if there is an error.
func (r *BackendRegistry) MustAdd(b BackendRegistration) {
	generic.Unwrap_(r.Add(b))
}

// MustCreatePriority wraps CreatePriority but panics if there is an error.
func (r *BackendRegistry) MustCreatePriority(name string, f BackendFactory, priority int16) {
	generic.Unwrap_(r.CreatePriority(name, f, priority))
}

// SetPriority adjust the priority of a named backend.
func (r *BackendRegistry) SetPriority(name string, priority int16) error {
	if b, ok := r.backendMap[name]; ok {
		b.Priority = priority
		r.sortByPriority()
		return nil
	} else {
		return ErrUnknownBackend
	}
}

func (r *BackendRegistry) sortByPriority() {
	sort.SliceStable(r.backends, func(i, j int) bool {
		return r.backends[i].Priority < r.backends[j].Priority
	})
}

func (r *BackendRegistry) String() string {
	return fmt.Sprintf("BackendRegistry[%s]", strings.Join(r.List(), ", "))
}

var DefaultBackendRegistry BackendRegistry
