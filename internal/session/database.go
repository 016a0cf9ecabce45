package session

import "time"

type RecordStatus string

const (
	RecordCompleted RecordStatus = "completed"
	RecordFailed    RecordStatus = "error"
)

// A Record is the history entry for one finished acquisition.
type Record struct {
	ID          string       `json:"id"`
	SourceID    string       `json:"source_id"`
	Quality     string       `json:"quality"`
	Status      RecordStatus `json:"status"`
	FailureKind string       `json:"failure_kind,omitempty"`
	Filename    string       `json:"filename,omitempty"`
	Size        int64        `json:"size,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

type Database interface {
	ListRecords() ([]Record, error)
	WriteRecord(*Record) error
	DeleteRecord(*Record) error
}

type NilDatabase struct{}

func (d NilDatabase) ListRecords() ([]Record, error) {
	return nil, nil
}

func (d NilDatabase) WriteRecord(_ *Record) error {
	return nil
}

func (d NilDatabase) DeleteRecord(_ *Record) error {
	return nil
}
