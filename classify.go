package video_acquirer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanbriolat/video-acquirer/generic"
)

type FailureKind string

const (
	FailureSourceUnavailable    FailureKind = "source_unavailable"
	FailureBlocked              FailureKind = "blocked"
	FailureExtractionFailed     FailureKind = "extraction_failed"
	FailureNoCompatibleEncoding FailureKind = "no_compatible_encoding"
	FailureTimeout              FailureKind = "timeout"
	FailureMergeFailed          FailureKind = "merge_failed"
)

var failureMessages = map[FailureKind]string{
	FailureSourceUnavailable:    "the requested media is unavailable",
	FailureBlocked:              "the media service is temporarily unavailable, please retry later",
	FailureExtractionFailed:     "the media could not be retrieved",
	FailureNoCompatibleEncoding: "no compatible format is available for the requested media",
	FailureTimeout:              "the request took too long to complete",
	FailureMergeFailed:          "the media could not be assembled",
}

var retryableKinds = generic.NewSet(FailureBlocked, FailureExtractionFailed)

// Message is the fixed, user-facing description of the failure kind.
func (k FailureKind) Message() string {
	if msg, ok := failureMessages[k]; ok {
		return msg
	}
	return failureMessages[FailureExtractionFailed]
}

// IsRetryable is true for kinds that are resolved by trying another attempt.
func (k FailureKind) IsRetryable() bool {
	return retryableKinds.Contains(k)
}

// ClassifiedFailure is the only error type that crosses the acquisition boundary. Error() never includes the
// underlying cause; use Detail() for logs.
type ClassifiedFailure struct {
	Kind      FailureKind
	Retryable bool
	cause     error
}

func NewFailure(kind FailureKind, cause error) *ClassifiedFailure {
	return &ClassifiedFailure{Kind: kind, Retryable: kind.IsRetryable(), cause: cause}
}

func (f *ClassifiedFailure) Error() string {
	return f.Kind.Message()
}

func (f *ClassifiedFailure) Unwrap() error {
	return f.cause
}

// Detail describes the underlying cause, for logging only.
func (f *ClassifiedFailure) Detail() string {
	if f.cause == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.cause)
}

// AsFailure extracts a *ClassifiedFailure from an error chain.
func AsFailure(err error) (*ClassifiedFailure, bool) {
	var f *ClassifiedFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ErrorClassifier maps a raw backend failure onto a FailureKind.
type ErrorClassifier interface {
	Classify(err error) *ClassifiedFailure
}

// PhraseClassifier is a best-effort ErrorClassifier matching case-insensitive phrases in the error text.
// Incompatible phrases are checked first (they are more specific than "is not available"), then unavailable, then
// blocked; anything else is ExtractionFailed.
type PhraseClassifier struct {
	Unavailable  []string
	Blocked      []string
	Incompatible []string
}

var DefaultClassifier ErrorClassifier = NewPhraseClassifier()

func NewPhraseClassifier() *PhraseClassifier {
	return &PhraseClassifier{
		Unavailable: []string{
			"video unavailable",
			"private video",
			"has been removed",
			"is not available",
			"account associated with this video has been terminated",
			"this live event will begin",
		},
		Blocked: []string{
			"sign in to confirm",
			"not a bot",
			"blocked",
			"bot",
			"http error 403",
			"403",
			"429",
			"too many requests",
			"503",
			"unable to extract",
		},
		Incompatible: []string{
			"requested format is not available",
			"no video formats found",
		},
	}
}

func (c *PhraseClassifier) Classify(err error) *ClassifiedFailure {
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewFailure(FailureTimeout, err)
	}
	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, c.Incompatible):
		return NewFailure(FailureNoCompatibleEncoding, err)
	case containsAny(text, c.Unavailable):
		return NewFailure(FailureSourceUnavailable, err)
	case containsAny(text, c.Blocked):
		return NewFailure(FailureBlocked, err)
	default:
		return NewFailure(FailureExtractionFailed, err)
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
