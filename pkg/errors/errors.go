package ballot_errors

import "errors"

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Lifecycle errors
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrImmutableField    = errors.New("field is immutable once the poll has left draft")
	ErrNotDraft          = errors.New("poll is not in draft")
	ErrInvalidDates      = errors.New("invalid poll dates")
	ErrInvalidStatus     = errors.New("invalid initial status")
)

// Tally errors
var (
	ErrPollNotOpen      = errors.New("poll is not open")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrInvalidChoice    = errors.New("choice does not belong to poll")
	ErrAlreadyVoted     = errors.New("participant already voted in this poll")
)

// Pipeline errors. These never reach a voter.
var (
	ErrMalformedEvent = errors.New("malformed vote event")
	ErrPublishFailed  = errors.New("event publish failed")
)

type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindState      Kind = "STATE"
	KindConflict   Kind = "CONFLICT"
	KindNotFound   Kind = "NOT_FOUND"
	KindIngestion  Kind = "INGESTION"
	KindChannel    Kind = "CHANNEL"
	KindInternal   Kind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidInput, KindValidation},
	{ErrInvalidSelection, KindValidation},
	{ErrInvalidChoice, KindValidation},
	{ErrInvalidDates, KindValidation},
	{ErrInvalidStatus, KindValidation},
	{ErrPollNotOpen, KindState},
	{ErrInvalidTransition, KindState},
	{ErrImmutableField, KindState},
	{ErrNotDraft, KindState},
	{ErrAlreadyVoted, KindConflict},
	{ErrAlreadyExists, KindConflict},
	{ErrConflict, KindConflict},
	{ErrNotFound, KindNotFound},
	{ErrMalformedEvent, KindIngestion},
	{ErrPublishFailed, KindChannel},
}

// KindOf classifies err into one of the error kinds. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
