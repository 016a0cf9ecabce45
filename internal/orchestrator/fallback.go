package orchestrator

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/download"
	"github.com/alanbriolat/video-acquirer/internal/progress"
)

// FallbackCoordinator runs the primary Orchestrator, and if that is exhausted tries the secondary backend once per
// locator. The caller only ever sees one unified failure kind.
type FallbackCoordinator struct {
	primary   *Orchestrator
	secondary video_acquirer.Backend
	log       *zap.SugaredLogger
}

// NewFallbackCoordinator creates a FallbackCoordinator. secondary may be nil, in which case primary failures are
// returned as they are.
func NewFallbackCoordinator(primary *Orchestrator, secondary video_acquirer.Backend) *FallbackCoordinator {
	return &FallbackCoordinator{
		primary:   primary,
		secondary: secondary,
		log:       zap.S().Named("fallback"),
	}
}

func (c *FallbackCoordinator) Acquire(ctx context.Context, req video_acquirer.SourceRequest, out progress.Publisher) (*video_acquirer.Artifact, error) {
	artifact, err := c.primary.Acquire(ctx, req, out)
	if err == nil {
		return artifact, nil
	}
	primaryFailure, ok := video_acquirer.AsFailure(err)
	if !ok {
		// Cancelled
		return nil, err
	}
	switch {
	case c.secondary == nil:
		return nil, primaryFailure
	case primaryFailure.Kind == video_acquirer.FailureSourceUnavailable, primaryFailure.Kind == video_acquirer.FailureTimeout:
		return nil, primaryFailure
	}

	log := c.log.With("source_id", req.SourceID, "backend", c.secondary.Name())
	log.Infow("primary exhausted, trying secondary", "primary_kind", primaryFailure.Kind)
	artifact, secondaryBlocked, err := c.trySecondary(ctx, req)
	if err == nil {
		log.Infow("acquired", "filename", artifact.Filename, "size", artifact.Size)
		return artifact, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, contextFailure(ctxErr)
	}

	kind := primaryFailure.Kind
	if primaryFailure.Kind == video_acquirer.FailureBlocked || secondaryBlocked {
		kind = video_acquirer.FailureBlocked
	}
	var detail error
	detail = multierror.Append(detail,
		multierror.Prefix(primaryFailure.Unwrap(), "[primary]"),
		multierror.Prefix(err, "[secondary]"),
	)
	log.Warnw("secondary failed", "kind", kind, "detail", detail)
	return nil, video_acquirer.NewFailure(kind, detail)
}

// trySecondary makes one attempt per locator, stopping early on a non-retryable failure.
func (c *FallbackCoordinator) trySecondary(ctx context.Context, req video_acquirer.SourceRequest) (_ *video_acquirer.Artifact, blocked bool, _ error) {
	config := c.primary.Config()
	d := c.primary.delivery()
	var errs error
	for _, locator := range config.Resolver.Resolve(req.SourceID) {
		if err := ctx.Err(); err != nil {
			return nil, blocked, err
		}
		artifact, err := d.withScratch(req, func(state *download.ScratchState) (*video_acquirer.Artifact, error) {
			result, err := c.secondary.FetchEncoding(ctx, video_acquirer.FetchRequest{
				Locator:    locator,
				Quality:    req.Quality,
				Selector:   req.Quality,
				ScratchDir: state.Dir(),
				CookieFile: config.CookieFile,
			}, video_acquirer.NopSink{})
			if err != nil {
				return nil, err
			} else if result == nil {
				result = &video_acquirer.FetchResult{}
			}
			return d.finish(ctx, state, req, result.Path, result.Title)
		})
		if err == nil {
			return artifact, blocked, nil
		}
		failure := config.Classifier.Classify(err)
		errs = multierror.Append(errs, fmt.Errorf("[%s] %s", locator.Form, failure.Detail()))
		if failure.Kind == video_acquirer.FailureBlocked {
			blocked = true
		}
		if !failure.Retryable {
			break
		}
	}
	return nil, blocked, errs
}
