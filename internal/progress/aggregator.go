package progress

import (
	"math"
	"sync"
	"time"

	"github.com/alanbriolat/video-acquirer"
)

// A Publisher accepts snapshots; Channel is the usual implementation.
type Publisher interface {
	Publish(Snapshot)
}

type PublisherFunc func(Snapshot)

func (f PublisherFunc) Publish(s Snapshot) {
	f(s)
}

// Aggregator merges the per-component byte counters of one fetch attempt into a single snapshot stream. Backends
// report absolute byte counts per component, so the aggregator sums deltas, tracking the last value seen for each
// component identity.
type Aggregator struct {
	mu  sync.Mutex
	out Publisher
	now func() time.Time

	expected  []int64
	slots     map[string]int
	lastBytes map[string]int64
	finished  map[string]bool
	planned   bool
	remaining int

	current       string
	downloaded    int64
	totalExpected int64
	percent       float64
	startedAt     time.Time
	processing    bool
	finalPath     string
}

var _ video_acquirer.Sink = (*Aggregator)(nil)

func NewAggregator(out Publisher) *Aggregator {
	return &Aggregator{
		out:       out,
		now:       time.Now,
		slots:     make(map[string]int),
		lastBytes: make(map[string]int64),
		finished:  make(map[string]bool),
	}
}

// WithClock replaces the time source used for speed calculations.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

func (a *Aggregator) Plan(sizes []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.planned = true
	a.expected = append([]int64(nil), sizes...)
	for len(a.expected) < len(a.slots) {
		a.expected = append(a.expected, 0)
	}
	a.remaining = len(a.expected) - len(a.finished)
	a.totalExpected = 0
	for _, size := range a.expected {
		if size > 0 {
			a.totalExpected += size
		}
	}
}

// slot returns the plan slot for a component, assigning the next one to a new identity.
func (a *Aggregator) slot(component string) int {
	if i, ok := a.slots[component]; ok {
		return i
	}
	i := len(a.slots)
	a.slots[component] = i
	if i >= len(a.expected) {
		// Unplanned component
		a.expected = append(a.expected, 0)
		a.remaining++
	}
	return i
}

func (a *Aggregator) Progress(component string, downloaded int64, total int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processing {
		return
	}
	if a.startedAt.IsZero() {
		a.startedAt = a.now()
	}
	i := a.slot(component)
	if component != a.current {
		// Rotation: continue from whatever this component last reported, which is 0 for a new one
		a.current = component
	}
	if total > 0 && a.expected[i] != total {
		a.totalExpected += total - a.expected[i]
		a.expected[i] = total
	}
	delta := downloaded - a.lastBytes[component]
	if delta > 0 {
		a.downloaded += delta
		a.lastBytes[component] = downloaded
	}
	a.out.Publish(a.downloadingSnapshot())
}

// ComponentFinished folds in any unreported bytes of the component. Once every planned component has finished the
// attempt moves to processing; without a plan there is no telling how many components remain, so that waits for
// Finalized or Processing.
func (a *Aggregator) ComponentFinished(component string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processing || a.finished[component] {
		return
	}
	i := a.slot(component)
	a.finished[component] = true
	// Fold in whatever the backend never reported
	if remainder := a.expected[i] - a.lastBytes[component]; remainder > 0 {
		a.downloaded += remainder
		a.lastBytes[component] = a.expected[i]
	}
	a.remaining--
	if a.planned && a.remaining <= 0 {
		a.enterProcessing()
	} else {
		a.out.Publish(a.downloadingSnapshot())
	}
}

func (a *Aggregator) Finalized(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalPath = path
	a.enterProcessing()
}

// Processing moves the attempt into the processing state if it is not already there, for backends that do not
// report component completion.
func (a *Aggregator) Processing() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enterProcessing()
}

// FinalizedPath is the path reported by Finalized, or "" if the backend never reported one.
func (a *Aggregator) FinalizedPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalPath
}

// DownloadedBytes is the running total of bytes received across all components.
func (a *Aggregator) DownloadedBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.downloaded
}

func (a *Aggregator) enterProcessing() {
	if a.processing {
		return
	}
	a.processing = true
	a.percent = 100
	s := a.baseSnapshot()
	s.Status = StatusProcessing
	s.Percent = float(100)
	s.Message = MessageMerging
	a.out.Publish(s)
}

func (a *Aggregator) downloadingSnapshot() Snapshot {
	s := a.baseSnapshot()
	s.Status = StatusDownloading
	if a.totalExpected > 0 {
		p := float64(a.downloaded) / float64(a.totalExpected) * 100
		p = math.Min(p, MaxDownloadingPercent)
		a.percent = math.Max(a.percent, p)
		s.Percent = float(a.percent)
	}
	return s
}

func (a *Aggregator) baseSnapshot() Snapshot {
	s := Snapshot{DownloadedBytes: a.downloaded}
	if a.totalExpected > 0 {
		s.TotalBytes = int64p(a.totalExpected)
	}
	if !a.startedAt.IsZero() {
		if elapsed := a.now().Sub(a.startedAt).Seconds(); elapsed > 0 {
			s.Speed = float64(a.downloaded) / elapsed
		}
	}
	return s
}
