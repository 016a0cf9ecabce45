package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/generic"
	"github.com/alanbriolat/video-acquirer/internal/progress"
	"github.com/alanbriolat/video-acquirer/internal/sync_"
)

type AcquisitionID string

func NewAcquisitionID() AcquisitionID {
	return AcquisitionID(generic.Unwrap(uuid.NewRandom()).String())
}

// An Acquisition is one run of the orchestrator for a request. It is finite and not restartable.
type Acquisition struct {
	ID      AcquisitionID
	Request video_acquirer.SourceRequest
	AddedAt time.Time

	session   *Session
	ctx       context.Context
	ctxCancel context.CancelFunc
	channel   *progress.Channel

	done   sync_.Event
	result generic.Result[*video_acquirer.Artifact]
}

var _ progress.Publisher = (*Acquisition)(nil)

func newAcquisition(session *Session, req video_acquirer.SourceRequest) *Acquisition {
	ctx, cancel := context.WithCancel(session.ctx)
	return &Acquisition{
		ID:      NewAcquisitionID(),
		Request: req,
		AddedAt: time.Now(),

		session:   session,
		ctx:       ctx,
		ctxCancel: cancel,
		channel:   progress.NewChannel(session.config.Channel, cancel),
	}
}

func (a *Acquisition) String() string {
	return fmt.Sprintf("Acquisition{ID:%q, Request:%q}", a.ID, a.Request)
}

func (a *Acquisition) log() *zap.SugaredLogger {
	return zap.S().Named("acquisition").With("acquisition_id", a.ID, "source_id", a.Request.SourceID)
}

// Publish records a snapshot from the worker, and announces the change to session subscribers.
func (a *Acquisition) Publish(s progress.Snapshot) {
	old := a.channel.Last()
	a.channel.Publish(s)
	if updated := a.channel.Last(); updated != old {
		a.session.events.TrySend(AcquisitionUpdated{acquisitionEvent{a}, old, updated})
	}
}

// Stream delivers progress snapshots to emit until the acquisition finishes. If ctx ends or emit fails first, the
// acquisition is cancelled.
func (a *Acquisition) Stream(ctx context.Context, emit func(progress.Snapshot) error) error {
	return a.channel.Stream(ctx, emit)
}

// Snapshot returns the latest progress.
func (a *Acquisition) Snapshot() progress.Snapshot {
	return a.channel.Last()
}

// Wait blocks until the acquisition finishes or ctx ends.
func (a *Acquisition) Wait(ctx context.Context) (*video_acquirer.Artifact, error) {
	select {
	case <-a.done.Wait():
		return a.result.Parts()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the acquisition; it still finishes with an error snapshot.
func (a *Acquisition) Cancel() {
	a.ctxCancel()
}

func (a *Acquisition) Done() <-chan struct{} {
	return a.done.Wait()
}

func (a *Acquisition) run() {
	s := a.session
	log := a.log()
	ctx, cancel := context.WithTimeout(a.ctx, s.config.AcquireTimeout)
	defer cancel()
	defer a.ctxCancel()

	startedAt := time.Now()
	a.Publish(progress.Starting())
	s.events.Send(AcquisitionStarted{acquisitionEvent{a}})
	log.Infow("acquisition started", "quality", a.Request.Quality)

	artifact, err := s.coordinator.Acquire(ctx, a.Request, a)
	if err == nil {
		s.cache.Put(a.Request.SourceID, *artifact)
		a.Publish(progress.Completed(artifact))
		log.Infow("acquisition complete", "filename", artifact.Filename, "size", artifact.Size)
	} else {
		var failure *video_acquirer.ClassifiedFailure
		if errors.As(err, &failure) {
			log.Warnw("acquisition failed", "kind", failure.Kind, "detail", failure.Detail())
		} else {
			log.Warnw("acquisition failed", "error", err)
		}
		a.Publish(progress.Failed(err))
	}
	s.writeRecord(a, startedAt, artifact, err)

	a.result = generic.NewResult(artifact, err)
	a.channel.Close()
	s.remove(a)
	a.done.Set()
	s.events.Send(AcquisitionFinished{acquisitionEvent{a}, err})
}
