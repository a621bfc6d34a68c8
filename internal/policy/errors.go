package policy

import "errors"

// ErrConfiguration is returned when tier or rule data is missing or invalid.
// Callers fail closed: the highest approver role is required until the
// configuration is corrected.
var ErrConfiguration = errors.New("invalid authorization configuration")
