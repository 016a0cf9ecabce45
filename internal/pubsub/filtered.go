package pubsub

// NewMappedSender wraps s so that every message passes through f first; messages for which f returns false are
// dropped instead of sent.
func NewMappedSender[T any](s SenderCloser[T], f func(T) (T, bool)) SenderCloser[T] {
	return &mappedSender[T]{
		SenderCloser: s,
		mapper:       f,
	}
}

type mappedSender[T any] struct {
	SenderCloser[T]
	mapper func(T) (T, bool)
}

func (s *mappedSender[T]) apply(msg T) (T, bool) {
	if s.mapper == nil {
		return msg, true
	}
	return s.mapper(msg)
}

func (s *mappedSender[T]) Send(msg T) bool {
	select {
	case <-s.Closed():
		return false
	default:
		if mapped, ok := s.apply(msg); ok {
			return s.SenderCloser.Send(mapped)
		}
		// "true" because channel is not closed, it "accepted" the message, it just dropped it
		return true
	}
}

// TrySend is like Send, but uses the wrapped sender's TrySend if it has one.
func (s *mappedSender[T]) TrySend(msg T) bool {
	select {
	case <-s.Closed():
		return false
	default:
		mapped, ok := s.apply(msg)
		if !ok {
			return true
		}
		if ts, ok := s.SenderCloser.(TrySender[T]); ok {
			return ts.TrySend(mapped)
		}
		return s.SenderCloser.Send(mapped)
	}
}
