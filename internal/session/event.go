package session

import "github.com/alanbriolat/video-acquirer/internal/progress"

type Event interface {
	// The Acquisition this event relates to.
	Acquisition() *Acquisition
}

type acquisitionEvent struct {
	acquisition *Acquisition
}

func (e acquisitionEvent) Acquisition() *Acquisition {
	return e.acquisition
}

type AcquisitionAdded struct {
	acquisitionEvent
}
type AcquisitionStarted struct {
	acquisitionEvent
}
type AcquisitionUpdated struct {
	acquisitionEvent
	OldSnapshot progress.Snapshot
	NewSnapshot progress.Snapshot
}
type AcquisitionFinished struct {
	acquisitionEvent
	Err error
}
