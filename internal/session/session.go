package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/generic"
	"github.com/alanbriolat/video-acquirer/internal/cache"
	"github.com/alanbriolat/video-acquirer/internal/completion"
	"github.com/alanbriolat/video-acquirer/internal/orchestrator"
	"github.com/alanbriolat/video-acquirer/internal/progress"
	"github.com/alanbriolat/video-acquirer/internal/pubsub"
	"github.com/alanbriolat/video-acquirer/internal/sync_"
)

var (
	ErrNoBackend     = errors.New("no primary backend configured")
	ErrSessionClosed = errors.New("session closed")
)

type Config struct {
	Orchestrator orchestrator.Config
	Primary      video_acquirer.StrategyBackend
	// Secondary is tried only when Primary is exhausted; may be nil.
	Secondary video_acquirer.Backend
	Cache     cache.Config
	Channel   progress.ChannelConfig
	// AcquireTimeout is the wall-clock limit of each acquisition, enforced by its worker.
	AcquireTimeout time.Duration
	Database       Database

	// Fs, Sleep and Rand replace the real filesystem, sleeping and randomness when set.
	Fs    afero.Fs
	Sleep completion.SleepFunc
	Rand  orchestrator.RandFunc
}

var DefaultConfig = Config{
	Orchestrator:   orchestrator.DefaultConfig,
	Cache:          cache.DefaultConfig,
	Channel:        progress.DefaultChannelConfig,
	AcquireTimeout: 600 * time.Second,
	Database:       NilDatabase{},
}

// BackendsFromRegistry builds every registered backend, using the first that supports strategies as the primary
// and the first other one as the secondary.
func BackendsFromRegistry(r *video_acquirer.BackendRegistry, opts video_acquirer.BackendOptions) (primary video_acquirer.StrategyBackend, secondary video_acquirer.Backend, err error) {
	backends, err := r.BuildAll(opts)
	for _, b := range backends {
		if sb, ok := b.(video_acquirer.StrategyBackend); ok && primary == nil {
			primary = sb
		} else if secondary == nil {
			secondary = b
		}
	}
	if primary == nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}
	if err != nil {
		zap.S().Named("session").Warnf("some backends unavailable: %v", err)
	}
	return primary, secondary, nil
}

type acquisitionsByID = map[AcquisitionID]*Acquisition

type Session struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	coordinator  *orchestrator.FallbackCoordinator
	cache        *cache.ResultCache
	acquisitions *sync_.RWMutexed[acquisitionsByID]
	events       pubsub.Publisher[Event]
	running      sync.WaitGroup
}

func New(ctx context.Context, config Config) (*Session, error) {
	if config.Primary == nil {
		return nil, ErrNoBackend
	}
	if config.Database == nil {
		config.Database = NilDatabase{}
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = DefaultConfig.AcquireTimeout
	}
	orch := orchestrator.New(config.Primary, config.Orchestrator)
	if config.Fs != nil {
		orch.WithFs(config.Fs)
	}
	if config.Sleep != nil {
		orch.WithSleep(config.Sleep)
	}
	if config.Rand != nil {
		orch.WithRand(config.Rand)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       video_acquirer.Logger(ctx).Sugar().Named("session"),

		coordinator:  orchestrator.NewFallbackCoordinator(orch, config.Secondary),
		cache:        cache.New(config.Cache),
		acquisitions: sync_.NewRWMutexed(make(acquisitionsByID)),
	}
	s.events = pubsub.NewPublisher[Event]()
	return s, nil
}

func (s *Session) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.Subscribe()
}

// TryServeCached returns the cached artifact for a source id, without starting anything.
func (s *Session) TryServeCached(sourceID string) generic.Option[video_acquirer.Artifact] {
	return s.cache.TakeIfReady(sourceID)
}

// Acquire blocks until the artifact for req is available, serving it from the cache if possible.
func (s *Session) Acquire(ctx context.Context, req video_acquirer.SourceRequest) (*video_acquirer.Artifact, error) {
	req, err := normalise(req)
	if err != nil {
		return nil, err
	}
	if cached := s.TryServeCached(req.SourceID); cached.IsSome() {
		artifact := cached.Unwrap()
		s.log.Debugw("served from cache", "source_id", req.SourceID)
		return &artifact, nil
	}
	a, err := s.start(req)
	if err != nil {
		return nil, err
	}
	artifact, err := a.Wait(ctx)
	if err != nil && errors.Is(err, ctx.Err()) {
		// The caller gave up, so nobody wants the result
		a.Cancel()
	}
	return artifact, err
}

// AcquireWithProgress starts a fresh acquisition and returns it for streaming. It never serves from the cache.
func (s *Session) AcquireWithProgress(_ context.Context, req video_acquirer.SourceRequest) (*Acquisition, error) {
	req, err := normalise(req)
	if err != nil {
		return nil, err
	}
	return s.start(req)
}

func normalise(req video_acquirer.SourceRequest) (video_acquirer.SourceRequest, error) {
	id, err := video_acquirer.ParseSourceID(req.SourceID)
	if err != nil {
		return req, err
	}
	return video_acquirer.NewSourceRequest(id, req.Quality), nil
}

func (s *Session) start(req video_acquirer.SourceRequest) (*Acquisition, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	a := newAcquisition(s, req)
	err := s.acquisitions.Locked(func(acquisitions *acquisitionsByID) error {
		if *acquisitions == nil {
			return ErrSessionClosed
		}
		(*acquisitions)[a.ID] = a
		return nil
	})
	if err != nil {
		a.ctxCancel()
		return nil, err
	}
	s.log.Debugf("acquisition added: %v", a)
	s.events.Send(AcquisitionAdded{acquisitionEvent{a}})
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		a.run()
	}()
	return a, nil
}

func (s *Session) remove(a *Acquisition) {
	_ = s.acquisitions.Locked(func(acquisitions *acquisitionsByID) error {
		delete(*acquisitions, a.ID)
		return nil
	})
}

// ListAcquisitions returns the acquisitions that are still running.
func (s *Session) ListAcquisitions() []*Acquisition {
	var list []*Acquisition
	_ = s.acquisitions.RLocked(func(acquisitions acquisitionsByID) error {
		list = make([]*Acquisition, 0, len(acquisitions))
		for _, a := range acquisitions {
			list = append(list, a)
		}
		return nil
	})
	return list
}

func (s *Session) GetAcquisition(id AcquisitionID) (a *Acquisition) {
	_ = s.acquisitions.RLocked(func(acquisitions acquisitionsByID) error {
		a = acquisitions[id]
		return nil
	})
	return a
}

// Close cancels every running acquisition and waits for their workers to finish.
func (s *Session) Close() {
	s.ctxCancel()
	acquisitions := s.acquisitions.Swap(nil)
	for _, a := range acquisitions {
		a.Cancel()
	}
	s.running.Wait()
	s.events.Close()
}
