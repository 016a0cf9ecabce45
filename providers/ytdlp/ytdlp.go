// Package ytdlp is the primary backend, running the yt-dlp command line tool.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/generic"
)

const (
	Name          = "yt-dlp"
	DefaultBinary = "yt-dlp"
)

// Backend runs yt-dlp, once to resolve metadata and once to fetch. It supports strategies through the youtube
// extractor's player_client argument.
type Backend struct {
	binary     string
	cookieFile string
	strategy   *video_acquirer.Strategy
	log        *zap.SugaredLogger
}

var _ video_acquirer.StrategyBackend = (*Backend)(nil)

// New creates the backend, failing if the binary cannot be found.
func New(opts video_acquirer.BackendOptions) (video_acquirer.Backend, error) {
	binary := opts.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, err
	}
	return &Backend{binary: path, cookieFile: opts.CookieFile, log: zap.S().Named("ytdlp")}, nil
}

func (b *Backend) Name() string {
	return Name
}

func (b *Backend) WithStrategy(strategy video_acquirer.Strategy) video_acquirer.Backend {
	clone := *b
	clone.strategy = &strategy
	clone.log = b.log.With("strategy", strategy.Name)
	return &clone
}

// commonArgs are shared by metadata and fetch invocations.
func (b *Backend) commonArgs(cookieFile string) []string {
	args := []string{"--no-playlist", "--no-warnings", "--ignore-config"}
	if b.strategy != nil {
		extractorArgs := "youtube:player_client=" + strings.Join(b.strategy.Clients, ",")
		if b.strategy.SkipWebpage {
			extractorArgs += ";player_skip=webpage"
		}
		args = append(args, "--extractor-args", extractorArgs)
	}
	if cookieFile == "" {
		cookieFile = b.cookieFile
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	return args
}

func (b *Backend) metadataArgs(locator video_acquirer.Locator) []string {
	return append(append([]string{"-J"}, b.commonArgs("")...), locator.URL)
}

func (b *Backend) fetchArgs(req video_acquirer.FetchRequest) []string {
	selector := req.Selector
	if selector == "" {
		selector = video_acquirer.FormatSelector(req.Quality)
	}
	args := []string{
		"-f", selector,
		"-S", "vcodec:h264,acodec:m4a",
		"--merge-output-format", video_acquirer.PreferredContainer,
		"-o", filepath.Join(req.ScratchDir, "%(id)s.%(ext)s"),
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", "before_dl:" + prefixTitle + "%(title)s",
		"--print", "before_dl:" + planTemplate,
		"--print", "before_dl:" + sizeTemplate,
		"--print", "after_move:" + prefixFinal + "%(filepath)s",
		"--no-simulate",
		"--no-mtime",
	}
	args = append(args, b.commonArgs(req.CookieFile)...)
	return append(args, req.Locator.URL)
}

func (b *Backend) ResolveMetadata(ctx context.Context, locator video_acquirer.Locator) (*video_acquirer.Metadata, error) {
	var stdout bytes.Buffer
	err := b.run(ctx, b.metadataArgs(locator), func(r io.Reader) error {
		_, err := io.Copy(&stdout, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return parseMetadata(stdout.Bytes())
}

func (b *Backend) FetchEncoding(ctx context.Context, req video_acquirer.FetchRequest, sink video_acquirer.Sink) (*video_acquirer.FetchResult, error) {
	if sink == nil {
		sink = video_acquirer.NopSink{}
	}
	var result *video_acquirer.FetchResult
	err := b.run(ctx, b.fetchArgs(req), func(r io.Reader) (err error) {
		result, err = readFetchOutput(r, sink)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readFetchOutput turns the machine-readable lines of a fetch into sink calls. The plan lines are printed before
// any progress, so the sink knows how many components to expect.
func readFetchOutput(r io.Reader, sink video_acquirer.Sink) (*video_acquirer.FetchResult, error) {
	result := &video_acquirer.FetchResult{}
	finished := generic.NewSet[string]()
	planned := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, prefixTitle):
			result.Title = strings.TrimPrefix(line, prefixTitle)
		case strings.HasPrefix(line, prefixPlan):
			if sizes, ok := parsePlanLine(line); ok {
				sink.Plan(sizes)
				planned = true
			}
		case strings.HasPrefix(line, prefixSize):
			if !planned {
				sink.Plan([]int64{parseNumber(strings.TrimPrefix(line, prefixSize))})
				planned = true
			}
		case strings.HasPrefix(line, prefixFinal):
			result.Path = strings.TrimPrefix(line, prefixFinal)
			sink.Finalized(result.Path)
		default:
			if p, ok := parseProgressLine(line); ok {
				component := filepath.Base(p.Filename)
				sink.Progress(component, p.Downloaded, p.Total)
				if p.Finished && finished.Add(component) > 0 {
					sink.ComponentFinished(component)
				}
			}
		}
	}
	return result, scanner.Err()
}

// run executes the binary, passing stdout to handle while collecting error lines from stderr.
func (b *Backend) run(ctx context.Context, args []string, handle func(io.Reader) error) error {
	cmd := exec.CommandContext(ctx, b.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	b.log.Debugw("running", "args", args)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", Name, err)
	}

	errs := errorLines{max: 5}
	var g errgroup.Group
	g.Go(func() error {
		err := handle(stdout)
		// Drain whatever the handler left, so the process is never blocked on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
		return err
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			errs.add(scanner.Text())
		}
		return nil
	})
	readErr := g.Wait()
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && len(errs.lines) > 0 {
			return errors.New(errs.String())
		}
		return fmt.Errorf("%s failed: %w", Name, waitErr)
	}
	return readErr
}
