package engine

import (
	"context"
	"errors"
	"fmt"

	"volunteermatch/internal/repo"
)

var (
	// ErrInvalidState is returned when an operation does not fit the
	// record's current state.
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotInvitedError reports a response from a candidate who holds no
// invitation. It matches both ErrInvalidState and repo.ErrNotFound.
type NotInvitedError struct {
	JobRequestID string
	CandidateID  string
}

func (e *NotInvitedError) Error() string {
	return fmt.Sprintf("candidate %s was not invited to job request %s", e.CandidateID, e.JobRequestID)
}

func (e *NotInvitedError) Is(target error) bool {
	return target == ErrInvalidState || target == repo.ErrNotFound
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Error kinds, used as log tags and in API error envelopes.
const (
	KindNotFound        = "not_found"
	KindInvalidState    = "invalid_state"
	KindConflict        = "conflict"
	KindInvalidArgument = "invalid_argument"
	KindUpstream        = "upstream"
	KindTimeout         = "timeout"
	KindInternal        = "internal"
)

// Kind classifies err. It returns "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, repo.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repo.ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, repo.ErrUpstream):
		return KindUpstream
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindInternal
}
