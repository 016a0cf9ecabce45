package download

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type scratchConfig struct {
	fs            afero.Fs
	baseTargetDir string
	baseTempDir   string
	pattern       string
	log           *zap.Logger
}

type ScratchOption func(*scratchConfig)

func WithFs(fs afero.Fs) ScratchOption {
	return func(c *scratchConfig) {
		c.fs = fs
	}
}

func WithTargetDir(dir string) ScratchOption {
	return func(c *scratchConfig) {
		c.baseTargetDir = dir
	}
}

func WithTempDir(dir string) ScratchOption {
	return func(c *scratchConfig) {
		c.baseTempDir = dir
	}
}

func WithLogger(log *zap.Logger) ScratchOption {
	return func(c *scratchConfig) {
		c.log = log
	}
}

// ScratchState is one attempt's private working directory. Nothing outside the attempt writes into it, and it is
// removed when the attempt ends.
type ScratchState struct {
	config  scratchConfig
	tempDir string
}

func newScratchState(config scratchConfig) (*ScratchState, error) {
	// Create target directory
	if len(config.baseTargetDir) > 0 {
		if err := config.fs.MkdirAll(config.baseTargetDir, 0755); err != nil {
			return nil, err
		}
	}
	if err := config.fs.MkdirAll(config.baseTempDir, 0755); err != nil {
		return nil, err
	}
	// Create temporary directory
	tempDir, err := afero.TempDir(config.fs, config.baseTempDir, config.pattern)
	if err != nil {
		return nil, err
	}
	state := &ScratchState{
		config:  config,
		tempDir: tempDir,
	}
	return state, nil
}

func (s *ScratchState) close() {
	// Clean up temporary directory
	if err := s.config.fs.RemoveAll(s.tempDir); err != nil {
		s.config.log.Warn("failed to clean up scratch directory", zap.String("dir", s.tempDir), zap.Error(err))
	}
}

// Dir is the path of the scratch directory.
func (s *ScratchState) Dir() string {
	return s.tempDir
}

func (s *ScratchState) Fs() afero.Fs {
	return s.config.fs
}

// Deliver moves a finished file out of the scratch directory into the target directory as filename, returning the
// new path. An existing file of the same name is replaced.
func (s *ScratchState) Deliver(path string, filename string) (string, error) {
	target := filepath.Join(s.config.baseTargetDir, filepath.Base(filename))
	if err := s.config.fs.Rename(path, target); err == nil {
		return target, nil
	}
	// Rename fails across filesystems, so fall back to copying
	if err := copyFile(s.config.fs, path, target); err != nil {
		return "", fmt.Errorf("failed to deliver %q: %w", filename, err)
	}
	return target, nil
}

func copyFile(fs afero.Fs, from string, to string) (err error) {
	src, err := fs.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := fs.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(dst, src)
	return err
}

// WithScratchState creates a fresh ScratchState, runs f with it, and removes it afterwards whatever the outcome.
func WithScratchState(f func(state *ScratchState) error, opts ...ScratchOption) error {
	config := scratchConfig{
		fs:            afero.NewOsFs(),
		baseTargetDir: "",
		baseTempDir:   os.TempDir(),
		pattern:       "video-acquirer-",
		log:           zap.L(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if state, err := newScratchState(config); err != nil {
		return err
	} else {
		defer state.close()
		return f(state)
	}
}
