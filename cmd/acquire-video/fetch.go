package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/r3labs/diff/v3"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/async"
	"github.com/alanbriolat/video-acquirer/generic"
	"github.com/alanbriolat/video-acquirer/internal/progress"
	"github.com/alanbriolat/video-acquirer/internal/session"
)

func fetch(ctx context.Context, e *env, c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one SOURCE is required", 1)
	}
	var wg sync.WaitGroup
	events, err := e.session.Subscribe()
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logEvents(e, events.Receive())
	}()
	defer func() {
		events.Close()
		wg.Wait()
	}()

	quality := c.String("quality")
	if c.Bool("progress") {
		// One bar at a time
		for _, source := range c.Args().Slice() {
			artifact, err := fetchWithProgress(ctx, e, video_acquirer.SourceRequest{SourceID: source, Quality: quality})
			if err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
			fmt.Println(artifact.Path)
		}
		return nil
	}

	sources := c.Args().Slice()
	results := lo.Map(sources, func(source string, _ int) <-chan generic.Result[*video_acquirer.Artifact] {
		return async.RunResult(func() (*video_acquirer.Artifact, error) {
			return e.session.Acquire(ctx, video_acquirer.SourceRequest{SourceID: source, Quality: quality})
		})
	})
	var errs error
	for i, result := range results {
		r := <-result
		if r.IsErr() {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", sources[i], r.Error))
			continue
		}
		fmt.Println(r.Value.Path)
	}
	return errs
}

func fetchWithProgress(ctx context.Context, e *env, req video_acquirer.SourceRequest) (*video_acquirer.Artifact, error) {
	a, err := e.session.AcquireWithProgress(ctx, req)
	if err != nil {
		return nil, err
	}
	bar := progressbar.DefaultBytes(-1, string(progress.StatusStarting))
	err = a.Stream(ctx, func(s progress.Snapshot) error {
		bar.Describe(string(s.Status))
		if s.TotalBytes != nil && bar.GetMax64() != *s.TotalBytes {
			bar.ChangeMax64(*s.TotalBytes)
		}
		generic.Unwrap_(bar.Set64(s.DownloadedBytes))
		if s.Status.IsTerminal() {
			generic.Unwrap_(bar.Finish())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.Wait(ctx)
}

func logEvents(e *env, events <-chan session.Event) {
	for event := range events {
		e.log.Debugf("event: %T: %v", event, event.Acquisition())
		switch ev := event.(type) {
		case session.AcquisitionUpdated:
			changes, err := diff.Diff(ev.OldSnapshot, ev.NewSnapshot)
			if err != nil {
				e.log.Errorf("failed to diff old and new snapshot: %v", err)
			} else {
				for _, change := range changes {
					e.log.Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
				}
			}
		case session.AcquisitionFinished:
			if f, ok := video_acquirer.AsFailure(ev.Err); ok {
				e.log.Infow("acquisition failed", "kind", f.Kind, "detail", f.Detail())
			}
		}
	}
}
