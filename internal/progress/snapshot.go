package progress

import (
	"fmt"

	"github.com/alanbriolat/video-acquirer"
)

type Status string

const (
	StatusUndefined   Status = ""
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

var statusOrder = map[Status]int{
	StatusUndefined:   0,
	StatusStarting:    1,
	StatusDownloading: 2,
	StatusProcessing:  3,
	StatusCompleted:   4,
	StatusError:       4,
}

// IsTerminal returns true for statuses after which nothing else is reported.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Before returns true if s comes strictly earlier than other in the status sequence.
func (s Status) Before(other Status) bool {
	return statusOrder[s] < statusOrder[other]
}

const (
	MaxDownloadingPercent = 99.9
	MessageStarting       = "starting"
	MessageMerging        = "merging components"
)

// A Snapshot is the progress of one acquisition at a point in time.
type Snapshot struct {
	Status Status
	// Percent is nil while the total size is unknown.
	Percent         *float64
	DownloadedBytes int64
	// TotalBytes is nil while the total size is unknown.
	TotalBytes *int64
	// Speed in bytes per second.
	Speed    float64
	Filename string
	Message  string
	// Error is the user-facing failure message, and Kind its classification, when Status is StatusError.
	Error string
	Kind  video_acquirer.FailureKind
}

func (s Snapshot) String() string {
	percent := "?"
	if s.Percent != nil {
		percent = fmt.Sprintf("%.1f%%", *s.Percent)
	}
	switch s.Status {
	case StatusCompleted:
		return fmt.Sprintf("%s %s (%s)", s.Status, percent, s.Filename)
	case StatusError:
		return fmt.Sprintf("%s [%s] %s", s.Status, s.Kind, s.Error)
	default:
		return fmt.Sprintf("%s %s %d bytes", s.Status, percent, s.DownloadedBytes)
	}
}

func float(v float64) *float64 {
	return &v
}

func int64p(v int64) *int64 {
	return &v
}

func Starting() Snapshot {
	return Snapshot{Status: StatusStarting, Percent: float(0), Message: MessageStarting}
}

// Completed is the terminal success snapshot for an artifact.
func Completed(artifact *video_acquirer.Artifact) Snapshot {
	return Snapshot{
		Status:          StatusCompleted,
		Percent:         float(100),
		DownloadedBytes: artifact.Size,
		TotalBytes:      int64p(artifact.Size),
		Filename:        artifact.Filename,
	}
}

// Failed is the terminal error snapshot for err. Only the fixed message of the failure kind is exposed.
func Failed(err error) Snapshot {
	f, ok := video_acquirer.AsFailure(err)
	if !ok {
		f = video_acquirer.DefaultClassifier.Classify(err)
	}
	return Snapshot{
		Status: StatusError,
		Error:  f.Error(),
		Kind:   f.Kind,
	}
}
