package completion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
)

var (
	ErrNoCandidate = errors.New("no finished file appeared")
	ErrNotStable   = errors.New("file never reached a stable size")
)

type Config struct {
	// Interval between polls, and between the two reads of the stability check.
	Interval time.Duration
	MaxWait  time.Duration
}

var DefaultConfig = Config{
	Interval: 2 * time.Second,
	MaxWait:  600 * time.Second,
}

// SleepFunc waits for d, returning early with an error if ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detector waits for the finalize step of a fetch to leave a complete file in a directory.
type Detector struct {
	fs     afero.Fs
	config Config
	sleep  SleepFunc
	log    *zap.SugaredLogger
}

func NewDetector(fs afero.Fs, config Config) *Detector {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig.Interval
	}
	if config.MaxWait <= 0 {
		config.MaxWait = DefaultConfig.MaxWait
	}
	return &Detector{
		fs:     fs,
		config: config,
		sleep:  Sleep,
		log:    zap.S().Named("completion"),
	}
}

// WithSleep replaces the function used to wait between polls.
func (d *Detector) WithSleep(sleep SleepFunc) *Detector {
	d.sleep = sleep
	return d
}

var (
	// Per-component files written before the merge, e.g. "abc123.f137.mp4" or "abc123.f251-drc.webm.part".
	intermediatePattern = regexp.MustCompile(`\.f\d+(-[\w]+)?\.\w+(\.part)?$`)
	// Not-yet-finalized files, e.g. "abc123.mp4.part" or "abc123.temp.mp4".
	temporaryPattern = regexp.MustCompile(`(\.part|\.temp\.\w+)$`)
)

const metadataSuffix = ".ytdl"

type candidate struct {
	path string
	size int64
}

// Await returns the path of the finished file in dir. If finalized is non-empty it is the path the backend
// reported, and is accepted immediately if it exists with a non-zero size. Otherwise dir is polled until a
// qualifying file has the same non-zero size on two consecutive reads.
func (d *Detector) Await(ctx context.Context, dir string, finalized string) (string, error) {
	if finalized != "" {
		if info, err := d.fs.Stat(finalized); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return finalized, nil
		} else {
			d.log.Debugw("reported file unusable, polling instead", "path", finalized, "error", err)
		}
	}

	var waited time.Duration
	var previous *candidate
	seen := false
	for {
		if err := ctx.Err(); err != nil {
			return "", d.contextFailure(err)
		}
		current, err := d.findCandidate(dir)
		if err != nil {
			return "", fmt.Errorf("failed to list %q: %w", dir, err)
		}
		if current != nil {
			seen = true
			if previous != nil && previous.path == current.path && previous.size == current.size && current.size > 0 {
				return current.path, nil
			}
		}
		previous = current
		if waited >= d.config.MaxWait {
			if seen {
				return "", video_acquirer.NewFailure(video_acquirer.FailureMergeFailed, ErrNotStable)
			}
			return "", video_acquirer.NewFailure(video_acquirer.FailureTimeout, ErrNoCandidate)
		}
		if err := d.sleep(ctx, d.config.Interval); err != nil {
			return "", d.contextFailure(err)
		}
		waited += d.config.Interval
	}
}

func (d *Detector) contextFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return video_acquirer.NewFailure(video_acquirer.FailureTimeout, err)
	}
	return err
}

// findCandidate picks the largest final file in dir, falling back to the largest temporary file only if there is
// no final file at all.
func (d *Detector) findCandidate(dir string) (*candidate, error) {
	entries, err := afero.ReadDir(d.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var final, temporary *candidate
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Mode().IsRegular() || strings.HasSuffix(name, metadataSuffix) || intermediatePattern.MatchString(name) {
			continue
		}
		c := &candidate{path: filepath.Join(dir, name), size: entry.Size()}
		if temporaryPattern.MatchString(name) {
			if temporary == nil || c.size > temporary.size {
				temporary = c
			}
		} else if final == nil || c.size > final.size {
			final = c
		}
	}
	if final != nil {
		return final, nil
	}
	return temporary, nil
}
