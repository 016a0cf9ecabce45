package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/download"
	"github.com/alanbriolat/video-acquirer/internal/completion"
	"github.com/alanbriolat/video-acquirer/internal/progress"
)

type Config struct {
	OutputDir  string
	ScratchDir string
	CookieFile string

	Strategies video_acquirer.StrategyChain
	Resolver   video_acquirer.LocatorResolver
	Classifier video_acquirer.ErrorClassifier
	Target     video_acquirer.TargetConfig
	Completion completion.Config

	// InitialJitter bounds the random delay before the first attempt of each request.
	InitialJitter time.Duration
	// BlockedBackoffMin and BlockedBackoffMax bound the random delay after a Blocked attempt.
	BlockedBackoffMin time.Duration
	BlockedBackoffMax time.Duration
}

var DefaultConfig = Config{
	OutputDir:         ".",
	ScratchDir:        os.TempDir(),
	Strategies:        video_acquirer.DefaultStrategies,
	Resolver:          video_acquirer.DefaultLocatorResolver,
	Classifier:        video_acquirer.DefaultClassifier,
	Completion:        completion.DefaultConfig,
	InitialJitter:     3 * time.Second,
	BlockedBackoffMin: 2 * time.Second,
	BlockedBackoffMax: 5 * time.Second,
}

func (c Config) withDefaults() Config {
	if len(c.Strategies) == 0 {
		c.Strategies = DefaultConfig.Strategies
	}
	if c.Resolver == nil {
		c.Resolver = DefaultConfig.Resolver
	}
	if c.Classifier == nil {
		c.Classifier = DefaultConfig.Classifier
	}
	if c.Target == nil {
		c.Target, _ = video_acquirer.NewTargetConfig("")
	}
	if c.ScratchDir == "" {
		c.ScratchDir = DefaultConfig.ScratchDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultConfig.OutputDir
	}
	return c
}

// RandFunc returns a duration uniformly distributed in [min, max).
type RandFunc func(min time.Duration, max time.Duration) time.Duration

// NewRandFunc returns a RandFunc backed by its own locked source.
func NewRandFunc(seed int64) RandFunc {
	var mu sync.Mutex
	r := rand.New(rand.NewSource(seed))
	return func(min time.Duration, max time.Duration) time.Duration {
		if max <= min {
			return min
		}
		mu.Lock()
		defer mu.Unlock()
		return min + time.Duration(r.Int63n(int64(max-min)))
	}
}

// An Attempt is one cell of the strategy x locator matrix.
type Attempt struct {
	Strategy video_acquirer.Strategy
	Locator  video_acquirer.Locator
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s via %s", a.Strategy.Name, a.Locator.Form)
}

// Orchestrator drives the primary backend through the strategy x locator matrix for a request.
type Orchestrator struct {
	config  Config
	backend video_acquirer.StrategyBackend
	fs      afero.Fs
	sleep   completion.SleepFunc
	rand    RandFunc
	log     *zap.SugaredLogger
}

func New(backend video_acquirer.StrategyBackend, config Config) *Orchestrator {
	return &Orchestrator{
		config:  config.withDefaults(),
		backend: backend,
		fs:      afero.NewOsFs(),
		sleep:   completion.Sleep,
		rand:    NewRandFunc(time.Now().UnixNano()),
		log:     zap.S().Named("orchestrator"),
	}
}

func (o *Orchestrator) WithFs(fs afero.Fs) *Orchestrator {
	o.fs = fs
	return o
}

// WithSleep replaces the function used for jitter, backoff and completion polling.
func (o *Orchestrator) WithSleep(sleep completion.SleepFunc) *Orchestrator {
	o.sleep = sleep
	return o
}

func (o *Orchestrator) WithRand(rand RandFunc) *Orchestrator {
	o.rand = rand
	return o
}

func (o *Orchestrator) Config() Config {
	return o.config
}

func (o *Orchestrator) delivery() *delivery {
	return &delivery{
		fs:         o.fs,
		outputDir:  o.config.OutputDir,
		scratchDir: o.config.ScratchDir,
		target:     o.config.Target,
		detector:   completion.NewDetector(o.fs, o.config.Completion).WithSleep(o.sleep),
		log:        o.log.Desugar(),
	}
}

// Attempts lists the matrix for a source id in the order it is visited: every locator for the first strategy,
// then every locator for the second, and so on.
func (o *Orchestrator) Attempts(sourceID string) []Attempt {
	locators := o.config.Resolver.Resolve(sourceID)
	attempts := make([]Attempt, 0, len(o.config.Strategies)*len(locators))
	for _, strategy := range o.config.Strategies {
		for _, locator := range locators {
			attempts = append(attempts, Attempt{Strategy: strategy, Locator: locator})
		}
	}
	return attempts
}

// Acquire walks the matrix until an attempt succeeds. SourceUnavailable, Timeout and MergeFailed end the walk at
// once. After a Blocked attempt the orchestrator backs off and moves on to the next strategy, since blocks follow
// the client identity rather than the locator. If the matrix is exhausted the failure is Blocked if any attempt
// was blocked, else NoCompatibleEncoding if any attempt found no usable encoding, else ExtractionFailed.
func (o *Orchestrator) Acquire(ctx context.Context, req video_acquirer.SourceRequest, out progress.Publisher) (*video_acquirer.Artifact, error) {
	if out == nil {
		out = progress.PublisherFunc(func(progress.Snapshot) {})
	}
	log := o.log.With("source_id", req.SourceID, "quality", req.Quality)
	if err := o.sleep(ctx, o.rand(0, o.config.InitialJitter)); err != nil {
		return nil, contextFailure(err)
	}

	attempts := o.Attempts(req.SourceID)
	d := o.delivery()
	var attemptErrs error
	blocked, incompatible := false, false
	var skipStrategy string
	for i, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, contextFailure(err)
		}
		if attempt.Strategy.Name == skipStrategy {
			continue
		}
		log.Debugw("attempting", "attempt", i+1, "of", len(attempts), "strategy", attempt.Strategy.String(), "locator", attempt.Locator.URL)
		artifact, err := o.attempt(ctx, d, req, attempt, out)
		if err == nil {
			log.Infow("acquired", "strategy", attempt.Strategy.Name, "locator", attempt.Locator.Form, "filename", artifact.Filename, "size", artifact.Size)
			return artifact, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextFailure(ctxErr)
		}
		failure := o.config.Classifier.Classify(err)
		attemptErrs = multierror.Append(attemptErrs, fmt.Errorf("[%v] %s", attempt, failure.Detail()))
		log.Infow("attempt failed", "strategy", attempt.Strategy.Name, "locator", attempt.Locator.Form, "kind", failure.Kind, "detail", failure.Detail())

		switch failure.Kind {
		case video_acquirer.FailureSourceUnavailable, video_acquirer.FailureTimeout, video_acquirer.FailureMergeFailed:
			return nil, failure
		case video_acquirer.FailureBlocked:
			blocked = true
			skipStrategy = attempt.Strategy.Name
			if hasNextStrategy(attempts[i+1:], skipStrategy) {
				backoff := o.rand(o.config.BlockedBackoffMin, o.config.BlockedBackoffMax)
				log.Debugw("backing off", "duration", backoff)
				if err := o.sleep(ctx, backoff); err != nil {
					return nil, contextFailure(err)
				}
			}
		case video_acquirer.FailureNoCompatibleEncoding:
			incompatible = true
		}
	}

	kind := video_acquirer.FailureExtractionFailed
	if blocked {
		kind = video_acquirer.FailureBlocked
	} else if incompatible {
		kind = video_acquirer.FailureNoCompatibleEncoding
	}
	log.Warnw("all attempts failed", "kind", kind, "attempts", attemptErrs)
	return nil, video_acquirer.NewFailure(kind, attemptErrs)
}

func hasNextStrategy(remaining []Attempt, skip string) bool {
	for _, a := range remaining {
		if a.Strategy.Name != skip {
			return true
		}
	}
	return false
}

func (o *Orchestrator) attempt(ctx context.Context, d *delivery, req video_acquirer.SourceRequest, attempt Attempt, out progress.Publisher) (*video_acquirer.Artifact, error) {
	backend := o.backend.WithStrategy(attempt.Strategy)
	return d.withScratch(req, func(state *download.ScratchState) (*video_acquirer.Artifact, error) {
		metadata, err := backend.ResolveMetadata(ctx, attempt.Locator)
		if err != nil {
			return nil, err
		}
		if !video_acquirer.Compatible(metadata.Encodings, req.Quality) {
			return nil, video_acquirer.NewFailure(video_acquirer.FailureNoCompatibleEncoding,
				fmt.Errorf("none of %d encodings satisfy %q", len(metadata.Encodings), req.Quality))
		}
		aggregator := progress.NewAggregator(out)
		result, err := backend.FetchEncoding(ctx, video_acquirer.FetchRequest{
			Locator:    attempt.Locator,
			Quality:    req.Quality,
			Selector:   video_acquirer.FormatSelector(req.Quality),
			ScratchDir: state.Dir(),
			CookieFile: o.config.CookieFile,
		}, aggregator)
		if err != nil {
			return nil, err
		}
		aggregator.Processing()
		finalized := aggregator.FinalizedPath()
		title := metadata.Title
		if result != nil {
			if finalized == "" {
				finalized = result.Path
			}
			if result.Title != "" {
				title = result.Title
			}
		}
		return d.finish(ctx, state, req, finalized, title)
	})
}

// contextFailure turns the worker's own deadline into a Timeout; cancellation is passed through as-is.
func contextFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return video_acquirer.NewFailure(video_acquirer.FailureTimeout, err)
	}
	return err
}
