package video_acquirer

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// QualityBest selects the descending-preference format chain rather than a specific encoding.
const QualityBest = "best"

// A SourceRequest identifies the asset to acquire, and the quality to acquire it at.
type SourceRequest struct {
	SourceID string
	Quality  string
}

// NewSourceRequest normalises the quality, treating an empty quality as QualityBest.
func NewSourceRequest(sourceID string, quality string) SourceRequest {
	quality = strings.TrimSpace(quality)
	if quality == "" {
		quality = QualityBest
	}
	return SourceRequest{SourceID: strings.TrimSpace(sourceID), Quality: quality}
}

func (r SourceRequest) IsBest() bool {
	return r.Quality == "" || strings.EqualFold(r.Quality, QualityBest)
}

func (r SourceRequest) String() string {
	return fmt.Sprintf("%s@%s", r.SourceID, r.Quality)
}

// An Artifact is the deliverable result of an acquisition: a finished file in the output directory.
type Artifact struct {
	SourceID string
	Path     string
	Filename string
	MimeType string
	Size     int64
}

// Open returns a reader for the artifact's bytes.
func (a *Artifact) Open() (io.ReadCloser, error) {
	return os.Open(a.Path)
}

func (a *Artifact) String() string {
	return fmt.Sprintf("Artifact{SourceID:%q, Filename:%q, Size:%d}", a.SourceID, a.Filename, a.Size)
}
