package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/download"
	"github.com/alanbriolat/video-acquirer/internal/completion"
)

// delivery is the per-attempt filesystem handling shared by the primary and secondary paths: a fresh scratch
// directory, waiting for the finished file, and moving it into the output directory.
type delivery struct {
	fs         afero.Fs
	outputDir  string
	scratchDir string
	target     video_acquirer.TargetConfig
	detector   *completion.Detector
	log        *zap.Logger
}

// withScratch runs f with a fresh scratch directory for one attempt at req.
func (d *delivery) withScratch(req video_acquirer.SourceRequest, f func(state *download.ScratchState) (*video_acquirer.Artifact, error)) (artifact *video_acquirer.Artifact, err error) {
	err = download.WithScratchState(
		func(state *download.ScratchState) error {
			artifact, err = f(state)
			return err
		},
		download.WithFs(d.fs),
		download.WithTempDir(d.scratchDir),
		download.WithTargetDir(filepath.Join(d.outputDir, video_acquirer.Slugify(req.SourceID))),
		download.WithLogger(d.log),
	)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// finish waits for the finished file and delivers it.
func (d *delivery) finish(ctx context.Context, state *download.ScratchState, req video_acquirer.SourceRequest, finalized string, title string) (*video_acquirer.Artifact, error) {
	path, err := d.detector.Await(ctx, state.Dir(), finalized)
	if err != nil {
		return nil, err
	}
	filename, err := d.target.GetTargetFilename(video_acquirer.TargetFileArgs{
		SourceID: req.SourceID,
		Title:    title,
		Ext:      artifactExt(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build target filename: %w", err)
	}
	delivered, err := state.Deliver(path, filename)
	if err != nil {
		return nil, video_acquirer.NewFailure(video_acquirer.FailureMergeFailed, err)
	}
	info, err := d.fs.Stat(delivered)
	if err != nil {
		return nil, video_acquirer.NewFailure(video_acquirer.FailureMergeFailed, err)
	}
	return &video_acquirer.Artifact{
		SourceID: req.SourceID,
		Path:     delivered,
		Filename: filepath.Base(delivered),
		MimeType: video_acquirer.MimeTypeForPath(delivered),
		Size:     info.Size(),
	}, nil
}

// artifactExt is the real extension of path, ignoring any not-yet-finalized marker.
func artifactExt(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".part")
	ext := filepath.Ext(name)
	if ext == "" {
		return "mp4"
	}
	return strings.TrimPrefix(ext, ".")
}
