package youtube

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/spf13/afero"
	assert_ "github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
)

var testFormats = youtube.FormatList{
	{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Height: 360, AudioChannels: 2, ContentLength: 1000},
	{ItagNo: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, Height: 720, AudioChannels: 2},
	{ItagNo: 43, MimeType: `video/webm; codecs="vp8.0, vorbis"`, Height: 1080, AudioChannels: 2},
	{ItagNo: 399, MimeType: `video/mp4; codecs="av01.0.08M.08"`, Height: 1080},
	{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2},
}

func TestPickFormat(t *testing.T) {
	assert := assert_.New(t)

	if f := pickFormat(testFormats, "best"); assert.NotNil(f) {
		assert.Equal(22, f.ItagNo)
	}
	if f := pickFormat(testFormats, "18"); assert.NotNil(f) {
		assert.Equal(18, f.ItagNo)
	}
	// Not progressive
	assert.Nil(pickFormat(testFormats, "399"))
	assert.Nil(pickFormat(testFormats[3:], "best"))
}

func TestToEncoding(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal(video_acquirer.Encoding{ID: "18", Container: "mp4", VideoCodec: "avc1.42001E", AudioCodec: "mp4a.40.2", Height: 360, Size: 1000}, toEncoding(testFormats[0]))
	audio := toEncoding(testFormats[4])
	assert.False(audio.HasVideo())
	assert.True(audio.HasAudio())
	assert.Equal("webm", toEncoding(testFormats[2]).Container)
}

type fakeClient struct {
	video *youtube.Video
	err   error
	data  []byte
}

func (c *fakeClient) GetVideoContext(_ context.Context, _ string) (*youtube.Video, error) {
	return c.video, c.err
}

func (c *fakeClient) GetStreamContext(_ context.Context, _ *youtube.Video, _ *youtube.Format) (io.ReadCloser, int64, error) {
	return io.NopCloser(bytes.NewReader(c.data)), int64(len(c.data)), nil
}

type finalizedRecorder struct {
	video_acquirer.NopSink
	path string
}

func (s *finalizedRecorder) Finalized(path string) {
	s.path = path
}

func TestBackend_FetchEncoding(t *testing.T) {
	assert := assert_.New(t)

	fs := afero.NewMemMapFs()
	b := &Backend{
		client: &fakeClient{video: &youtube.Video{ID: "abc123", Title: "Test Video", Formats: testFormats}, data: []byte("video data")},
		fs:     fs,
		log:    zap.NewNop().Sugar(),
	}
	locator := video_acquirer.DefaultLocatorResolver.Resolve("abc123")[0]
	sink := &finalizedRecorder{}
	result, err := b.FetchEncoding(context.Background(), video_acquirer.FetchRequest{Locator: locator, Quality: "best", ScratchDir: "/scratch/1"}, sink)

	assert.NoError(err)
	assert.Equal("/scratch/1/abc123.mp4", result.Path)
	assert.Equal("Test Video", result.Title)
	assert.Equal(result.Path, sink.path)
	data, _ := afero.ReadFile(fs, result.Path)
	assert.Equal("video data", string(data))

	m, err := b.ResolveMetadata(context.Background(), locator)
	assert.NoError(err)
	assert.Len(m.Encodings, len(testFormats))
}

func TestBackend_Errors(t *testing.T) {
	assert := assert_.New(t)

	b := &Backend{client: &fakeClient{err: errors.New("Video unavailable")}, fs: afero.NewMemMapFs(), log: zap.NewNop().Sugar()}
	locator := video_acquirer.DefaultLocatorResolver.Resolve("abc123")[0]
	_, err := b.FetchEncoding(context.Background(), video_acquirer.FetchRequest{Locator: locator, Quality: "best"}, nil)
	assert.Equal(video_acquirer.FailureSourceUnavailable, video_acquirer.DefaultClassifier.Classify(err).Kind)

	b.client = &fakeClient{video: &youtube.Video{ID: "abc123", Formats: testFormats}}
	_, err = b.FetchEncoding(context.Background(), video_acquirer.FetchRequest{Locator: locator, Quality: "999"}, nil)
	assert.ErrorIs(err, ErrNoFormat)
	assert.Equal(video_acquirer.FailureNoCompatibleEncoding, video_acquirer.DefaultClassifier.Classify(err).Kind)
}
