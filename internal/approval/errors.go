package approval

import "errors"

var (
	// ErrNotFound is returned when no request exists for the given id
	ErrNotFound = errors.New("approval request not found")

	// ErrApprovalChannel is returned when the approver could not be
	// contacted; the request lands in its error state and the requester
	// must submit a new request to retry
	ErrApprovalChannel = errors.New("approval channel failure")

	// ErrForbidden is returned when an actor other than the requester
	// attempts a requester-only transition
	ErrForbidden = errors.New("actor may not perform this transition")

	// ErrReasonRequired is returned when a denial omits the reason code
	// demanded by the resolved tier
	ErrReasonRequired = errors.New("deny reason code required")
)
