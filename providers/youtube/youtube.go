// Package youtube is the secondary backend, fetching progressive streams with the kkdai/youtube client.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
)

const Name = "youtube"

var ErrNoFormat = errors.New("requested format is not available")

// client is the part of *youtube.Client used here.
type client interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// Backend only fetches progressive (audio and video in one stream) formats, so it never needs to merge.
type Backend struct {
	client client
	fs     afero.Fs
	log    *zap.SugaredLogger
}

var _ video_acquirer.Backend = (*Backend)(nil)

func New(_ video_acquirer.BackendOptions) (video_acquirer.Backend, error) {
	return &Backend{client: &youtube.Client{}, fs: afero.NewOsFs(), log: zap.S().Named("youtube")}, nil
}

func (b *Backend) Name() string {
	return Name
}

func (b *Backend) ResolveMetadata(ctx context.Context, locator video_acquirer.Locator) (*video_acquirer.Metadata, error) {
	video, err := b.client.GetVideoContext(ctx, locator.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	m := &video_acquirer.Metadata{ID: video.ID, Title: video.Title}
	for _, f := range video.Formats {
		m.Encodings = append(m.Encodings, toEncoding(f))
	}
	return m, nil
}

func (b *Backend) FetchEncoding(ctx context.Context, req video_acquirer.FetchRequest, sink video_acquirer.Sink) (*video_acquirer.FetchResult, error) {
	video, err := b.client.GetVideoContext(ctx, req.Locator.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	format := pickFormat(video.Formats, req.Quality)
	if format == nil {
		return nil, ErrNoFormat
	}
	b.log.Debugw("selected format", "source_id", video.ID, "itag", format.ItagNo, "mime_type", format.MimeType)

	stream, size, err := b.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	path := filepath.Join(req.ScratchDir, fmt.Sprintf("%s.%s", video.ID, extension(format.MimeType)))
	if _, err := video_acquirer.SaveStream(ctx, b.fs, path, stream, size, sink); err != nil {
		return nil, err
	}
	if sink != nil {
		sink.Finalized(path)
	}
	return &video_acquirer.FetchResult{Path: path, Title: video.Title}, nil
}

func toEncoding(f youtube.Format) video_acquirer.Encoding {
	e := video_acquirer.Encoding{
		ID:         strconv.Itoa(f.ItagNo),
		Container:  extension(f.MimeType),
		VideoCodec: "none",
		AudioCodec: "none",
		Height:     f.Height,
		Size:       f.ContentLength,
	}
	for _, codec := range codecs(f.MimeType) {
		if isAudioCodec(codec) {
			e.AudioCodec = codec
		} else if strings.HasPrefix(f.MimeType, "video/") {
			e.VideoCodec = codec
		}
	}
	return e
}

// pickFormat returns the progressive format for quality: for QualityBest the tallest non-AV1 format preferring
// mp4, otherwise the format whose itag is quality.
func pickFormat(formats youtube.FormatList, quality string) *youtube.Format {
	progressive := formats.WithAudioChannels()
	if quality != "" && !strings.EqualFold(quality, video_acquirer.QualityBest) {
		for i := range progressive {
			if strconv.Itoa(progressive[i].ItagNo) == quality {
				return &progressive[i]
			}
		}
		return nil
	}
	var best *youtube.Format
	for i := range progressive {
		f := &progressive[i]
		e := toEncoding(*f)
		if !e.HasVideo() || strings.HasPrefix(e.VideoCodec, video_acquirer.DisfavoredCodec) {
			continue
		}
		if best == nil || better(f, best) {
			best = f
		}
	}
	return best
}

func better(f *youtube.Format, than *youtube.Format) bool {
	fmp4 := extension(f.MimeType) == video_acquirer.PreferredContainer
	tmp4 := extension(than.MimeType) == video_acquirer.PreferredContainer
	if fmp4 != tmp4 {
		return fmp4
	}
	return f.Height > than.Height
}

// extension of a mime type such as `video/mp4; codecs="avc1.42001E, mp4a.40.2"`.
func extension(mimeType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	if parts := strings.SplitN(mediaType, "/", 2); len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}
	return video_acquirer.PreferredContainer
}

func codecs(mimeType string) []string {
	_, params, ok := strings.Cut(mimeType, "codecs=")
	if !ok {
		return nil
	}
	var result []string
	for _, c := range strings.Split(strings.Trim(params, `" `), ",") {
		if c = strings.TrimSpace(c); c != "" {
			result = append(result, c)
		}
	}
	return result
}

func isAudioCodec(codec string) bool {
	for _, prefix := range []string{"mp4a", "opus", "vorbis", "ac-3", "ec-3"} {
		if strings.HasPrefix(codec, prefix) {
			return true
		}
	}
	return false
}
