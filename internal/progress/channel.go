package progress

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/internal/pubsub"
	"github.com/alanbriolat/video-acquirer/internal/sync_"
)

const (
	DefaultQueueSize = 64
	DefaultHeartbeat = 500 * time.Millisecond
	DefaultBudget    = 600 * time.Second
)

type ChannelConfig struct {
	QueueSize int
	// Heartbeat is how long the consumer waits for a new snapshot before repeating the last one.
	Heartbeat time.Duration
	// Budget is the consumer's overall wall-clock limit.
	Budget time.Duration
}

var DefaultChannelConfig = ChannelConfig{
	QueueSize: DefaultQueueSize,
	Heartbeat: DefaultHeartbeat,
	Budget:    DefaultBudget,
}

// A Channel carries the snapshots of one acquisition from its worker (the producer) to one consumer. Publish never
// blocks: if the queue is full the snapshot is dropped from the queue, but still becomes the last-known snapshot
// that heartbeats repeat. Snapshots are rewritten on the way in so the consumer only ever observes non-decreasing
// percent and statuses in order.
type Channel struct {
	config ChannelConfig
	cancel context.CancelFunc
	log    *zap.SugaredLogger

	queue  pubsub.Channel[Snapshot]
	sender pubsub.TrySender[Snapshot]
	closer pubsub.Closer
	last   *sync_.Mutexed[Snapshot]
}

var _ Publisher = (*Channel)(nil)

// NewChannel creates a Channel. cancel is called if the consumer goes away before the acquisition finishes.
func NewChannel(config ChannelConfig, cancel context.CancelFunc) *Channel {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Heartbeat <= 0 {
		config.Heartbeat = DefaultHeartbeat
	}
	if config.Budget <= 0 {
		config.Budget = DefaultBudget
	}
	if cancel == nil {
		cancel = func() {}
	}
	c := &Channel{
		config: config,
		cancel: cancel,
		log:    zap.S().Named("progress"),
		queue:  pubsub.NewChannel[Snapshot](config.QueueSize),
		last:   sync_.NewMutexed(Snapshot{}),
	}
	mapped := pubsub.NewMappedSender[Snapshot](c.queue, c.guard)
	c.sender = mapped.(pubsub.TrySender[Snapshot])
	c.closer = mapped
	return c
}

// guard enforces ordering against the last-known snapshot, recording the result as the new last-known snapshot.
func (c *Channel) guard(s Snapshot) (result Snapshot, ok bool) {
	_ = c.last.Locked(func(last *Snapshot) error {
		switch {
		case last.Status.IsTerminal():
			// Nothing follows a terminal snapshot
			return nil
		case s.Status.Before(last.Status) && !s.Status.IsTerminal():
			return nil
		case s.Status == StatusDownloading && last.Status == StatusDownloading:
			if last.Percent != nil && (s.Percent == nil || *s.Percent < *last.Percent) {
				s.Percent = float(*last.Percent)
			}
			if s.DownloadedBytes < last.DownloadedBytes {
				s.DownloadedBytes = last.DownloadedBytes
			}
		}
		*last = s
		result, ok = s, true
		return nil
	})
	return result, ok
}

// Publish offers a snapshot to the consumer without blocking.
func (c *Channel) Publish(s Snapshot) {
	if !c.sender.TrySend(s) {
		c.log.Debugw("snapshot not queued", "status", s.Status)
	}
}

// Last returns the last-known snapshot.
func (c *Channel) Last() Snapshot {
	return c.last.Get()
}

// Close is called by the producer once it will publish nothing more.
func (c *Channel) Close() {
	c.closer.Close()
}

// Stream delivers snapshots to emit until a terminal snapshot has been emitted, repeating the last-known snapshot
// whenever nothing new arrives within the heartbeat interval. If the budget expires first a Timeout error snapshot
// is emitted instead. If ctx ends, or emit returns an error, the producer is cancelled and the error returned.
func (c *Channel) Stream(ctx context.Context, emit func(Snapshot) error) (err error) {
	heartbeat := time.NewTicker(c.config.Heartbeat)
	defer heartbeat.Stop()
	budget := time.NewTimer(c.config.Budget)
	defer budget.Stop()
	defer func() {
		if err != nil {
			c.cancel()
		}
	}()

	for {
		select {
		case s, ok := <-c.queue.Receive():
			if !ok {
				// Producer finished; if the terminal snapshot was dropped from the queue, last-known still has it
				last := c.Last()
				if !last.Status.IsTerminal() {
					last = Failed(video_acquirer.NewFailure(video_acquirer.FailureExtractionFailed, nil))
				}
				return emit(last)
			}
			if err := emit(s); err != nil {
				return err
			}
			if s.Status.IsTerminal() {
				return nil
			}
			heartbeat.Reset(c.config.Heartbeat)
		case <-heartbeat.C:
			last := c.Last()
			if last.Status == StatusUndefined {
				continue
			}
			if err := emit(last); err != nil {
				return err
			}
			if last.Status.IsTerminal() {
				return nil
			}
		case <-budget.C:
			c.cancel()
			return emit(Failed(video_acquirer.NewFailure(video_acquirer.FailureTimeout, nil)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
