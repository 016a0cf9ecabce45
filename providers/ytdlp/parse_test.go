package ytdlp

import (
	"strings"
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/internal/progress"
)

func TestParseMetadata(t *testing.T) {
	assert := assert_.New(t)

	m, err := parseMetadata([]byte(`{
		"id": "abc123",
		"title": "Test Video",
		"formats": [
			{"format_id": "137", "ext": "mp4", "height": 1080, "vcodec": "avc1.640028", "acodec": "none", "filesize": 40000000},
			{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2", "filesize_approx": 10000000.5},
			{"format_id": "399", "ext": "mp4", "height": 1080, "vcodec": "av01.0.08M.08", "acodec": "none"}
		]
	}`))
	assert.NoError(err)
	assert.Equal("abc123", m.ID)
	assert.Equal("Test Video", m.Title)
	if assert.Len(m.Encodings, 3) {
		assert.Equal(video_acquirer.Encoding{ID: "137", Container: "mp4", VideoCodec: "avc1.640028", AudioCodec: "none", Height: 1080, Size: 40000000}, m.Encodings[0])
		assert.Equal(int64(10000000), m.Encodings[1].Size)
		assert.False(m.Encodings[1].HasVideo())
	}
	assert.True(video_acquirer.Compatible(m.Encodings, video_acquirer.QualityBest))

	_, err = parseMetadata([]byte("not json"))
	assert.Error(err)
}

func TestParseProgressLine(t *testing.T) {
	assert := assert_.New(t)

	p, ok := parseProgressLine("PROGRESS|/tmp/x/abc123.f137.mp4|1024|4096|NA|downloading")
	assert.True(ok)
	assert.Equal(progressLine{Filename: "/tmp/x/abc123.f137.mp4", Downloaded: 1024, Total: 4096}, p)

	p, ok = parseProgressLine("PROGRESS|abc123.f140.m4a|2048|NA|4096.7|finished")
	assert.True(ok)
	assert.Equal(int64(4096), p.Total)
	assert.True(p.Finished)

	p, ok = parseProgressLine("PROGRESS|abc123.f140.m4a|NA|NA|NA|downloading")
	assert.True(ok)
	assert.Zero(p.Downloaded)
	assert.Zero(p.Total)

	for _, line := range []string{
		"[download] Destination: abc123.f137.mp4",
		"PROGRESS|NA|1|2|3|downloading",
		"PROGRESS|too|few",
	} {
		_, ok := parseProgressLine(line)
		assert.False(ok, line)
	}
}

func TestErrorLines(t *testing.T) {
	assert := assert_.New(t)

	e := errorLines{max: 2}
	e.add("WARNING: something minor")
	e.add("ERROR: first")
	e.add("ERROR: second")
	e.add("ERROR: [youtube] abc123: Sign in to confirm you're not a bot")
	assert.Equal("ERROR: second; ERROR: [youtube] abc123: Sign in to confirm you're not a bot", e.String())
	failure := video_acquirer.DefaultClassifier.Classify(errorString(e.String()))
	assert.Equal(video_acquirer.FailureBlocked, failure.Kind)
}

type errorString string

func (e errorString) Error() string {
	return string(e)
}

func TestBackend_Args(t *testing.T) {
	assert := assert_.New(t)

	b := &Backend{binary: "yt-dlp", cookieFile: "/etc/cookies.txt", log: zap.NewNop().Sugar()}
	locator := video_acquirer.DefaultLocatorResolver.Resolve("abc123")[0]
	assert.Equal([]string{"-J", "--no-playlist", "--no-warnings", "--ignore-config", "--cookies", "/etc/cookies.txt", "https://www.youtube.com/watch?v=abc123"}, b.metadataArgs(locator))

	mobile := b.WithStrategy(video_acquirer.DefaultStrategies[1]).(*Backend)
	args := mobile.fetchArgs(video_acquirer.FetchRequest{Locator: locator, Quality: "best", ScratchDir: "/scratch/1", CookieFile: "/tmp/other.txt"})
	assert.Contains(args, "youtube:player_client=android,ios;player_skip=webpage")
	assert.Contains(args, video_acquirer.FormatSelector("best"))
	assert.Contains(args, "/scratch/1/%(id)s.%(ext)s")
	assert.Contains(args, "/tmp/other.txt")
	assert.NotContains(args, "/etc/cookies.txt")
	assert.Equal(locator.URL, args[len(args)-1])
	// The original is unchanged
	assert.Nil(b.strategy)

	web := b.WithStrategy(video_acquirer.DefaultStrategies[0]).(*Backend)
	assert.Contains(web.metadataArgs(locator), "youtube:player_client=web")
}

type snapshots struct {
	mu  sync.Mutex
	all []progress.Snapshot
}

func (s *snapshots) Publish(snapshot progress.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, snapshot)
}

func TestParsePlanLine(t *testing.T) {
	assert := assert_.New(t)

	sizes, ok := parsePlanLine(`PLAN|[{"format_id": "137", "filesize": 1000, "filesize_approx": null}, {"format_id": "140", "filesize": null, "filesize_approx": 200.4}]`)
	assert.True(ok)
	assert.Equal([]int64{1000, 200}, sizes)

	_, ok = parsePlanLine("PLAN|NA")
	assert.False(ok)
}

func TestReadFetchOutput_MergedFormats(t *testing.T) {
	assert := assert_.New(t)

	transcript := strings.Join([]string{
		"TITLE|Test Video",
		`PLAN|[{"format_id": "137", "filesize": 1000, "filesize_approx": null}, {"format_id": "140", "filesize": 200, "filesize_approx": null}]`,
		"SIZE|NA",
		"PROGRESS|/scratch/1/abc123.f137.mp4|500|1000|NA|downloading",
		"PROGRESS|/scratch/1/abc123.f137.mp4|1000|1000|NA|downloading",
		"PROGRESS|/scratch/1/abc123.f137.mp4|1000|1000|NA|finished",
		"PROGRESS|/scratch/1/abc123.f140.m4a|100|200|NA|downloading",
		"PROGRESS|/scratch/1/abc123.f140.m4a|200|200|NA|downloading",
		"PROGRESS|/scratch/1/abc123.f140.m4a|200|200|NA|finished",
		"[Merger] Merging formats into \"/scratch/1/abc123.mp4\"",
		"FINAL|/scratch/1/abc123.mp4",
	}, "\n")
	out := &snapshots{}
	agg := progress.NewAggregator(out)

	result, err := readFetchOutput(strings.NewReader(transcript), agg)
	assert.NoError(err)
	assert.Equal("Test Video", result.Title)
	assert.Equal("/scratch/1/abc123.mp4", result.Path)
	assert.Equal("/scratch/1/abc123.mp4", agg.FinalizedPath())
	assert.Equal(int64(1200), agg.DownloadedBytes())

	// Processing only follows the last byte of the audio component
	processingAt := -1
	for i, s := range out.all {
		if s.Status == progress.StatusProcessing {
			processingAt = i
			break
		}
		assert.Equal(progress.StatusDownloading, s.Status)
		if assert.NotNil(s.TotalBytes) {
			assert.Equal(int64(1200), *s.TotalBytes)
		}
	}
	if assert.Greater(processingAt, 0) {
		assert.Equal(int64(1200), out.all[processingAt-1].DownloadedBytes)
		assert.Equal(int64(1200), out.all[processingAt].DownloadedBytes)
	}
}

func TestReadFetchOutput_SingleFormat(t *testing.T) {
	assert := assert_.New(t)

	transcript := strings.Join([]string{
		"TITLE|Test Video",
		"PLAN|NA",
		"SIZE|800",
		"PROGRESS|/scratch/1/abc123.mp4|400|NA|800.0|downloading",
		"PROGRESS|/scratch/1/abc123.mp4|800|800|NA|finished",
		"FINAL|/scratch/1/abc123.mp4",
	}, "\n")
	out := &snapshots{}
	agg := progress.NewAggregator(out)

	_, err := readFetchOutput(strings.NewReader(transcript), agg)
	assert.NoError(err)
	assert.Equal(int64(800), agg.DownloadedBytes())
	if assert.Len(out.all, 3) {
		assert.Equal(50.0, *out.all[0].Percent)
		assert.Equal(progress.StatusProcessing, out.all[2].Status)
	}
}
