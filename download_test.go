package video_acquirer

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	assert_ "github.com/stretchr/testify/assert"
)

type sinkRecorder struct {
	NopSink
	plans    [][]int64
	progress []int64
	finished []string
}

func (s *sinkRecorder) Plan(sizes []int64) {
	s.plans = append(s.plans, sizes)
}

func (s *sinkRecorder) Progress(_ string, downloaded int64, _ int64) {
	s.progress = append(s.progress, downloaded)
}

func (s *sinkRecorder) ComponentFinished(component string) {
	s.finished = append(s.finished, component)
}

func TestSaveStream(t *testing.T) {
	assert := assert_.New(t)

	fs := afero.NewMemMapFs()
	sink := &sinkRecorder{}
	data := bytes.Repeat([]byte("x"), 100_000)
	n, err := SaveStream(context.Background(), fs, "/scratch/abc123.mp4", bytes.NewReader(data), int64(len(data)), sink)

	assert.NoError(err)
	assert.Equal(int64(len(data)), n)
	assert.Equal([][]int64{{100_000}}, sink.plans)
	assert.Equal([]string{"abc123.mp4"}, sink.finished)
	if assert.NotEmpty(sink.progress) {
		assert.Equal(int64(100_000), sink.progress[len(sink.progress)-1])
	}
	saved, _ := afero.ReadFile(fs, "/scratch/abc123.mp4")
	assert.Equal(data, saved)
}

func TestSaveStream_Cancelled(t *testing.T) {
	assert := assert_.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &sinkRecorder{}
	_, err := SaveStream(ctx, afero.NewMemMapFs(), "/scratch/abc123.mp4", bytes.NewReader([]byte("data")), 4, sink)
	assert.ErrorIs(err, context.Canceled)
	assert.Empty(sink.finished)
}
