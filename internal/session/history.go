package session

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/video-acquirer"
)

func (s *Session) writeRecord(a *Acquisition, startedAt time.Time, artifact *video_acquirer.Artifact, err error) {
	record := Record{
		ID:         string(a.ID),
		SourceID:   a.Request.SourceID,
		Quality:    a.Request.Quality,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if err == nil {
		record.Status = RecordCompleted
		record.Filename = artifact.Filename
		record.Size = artifact.Size
	} else {
		record.Status = RecordFailed
		if f, ok := video_acquirer.AsFailure(err); ok {
			record.FailureKind = string(f.Kind)
		}
	}
	if err := s.config.Database.WriteRecord(&record); err != nil {
		s.log.Errorf("failed to write history record: %v", err)
	}
}

// History lists the recorded acquisitions.
func (s *Session) History() ([]Record, error) {
	return s.config.Database.ListRecords()
}

// PruneHistory deletes records that finished more than maxAge ago, returning how many were deleted.
func (s *Session) PruneHistory(maxAge time.Duration) (int, error) {
	records, err := s.config.Database.ListRecords()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	var result error
	deleted := 0
	for i := range records {
		if records[i].FinishedAt.Before(cutoff) {
			if err := s.config.Database.DeleteRecord(&records[i]); err != nil {
				result = multierror.Append(result, err)
			} else {
				deleted++
			}
		}
	}
	return deleted, result
}
