package loan

import "errors"

// ErrAlertNotFound is returned by Store mutation methods when the
// target alert ID does not exist.
var ErrAlertNotFound = errors.New("loan: alert not found")

// ErrLoanNotFound is returned when a lookup by token fails.
var ErrLoanNotFound = errors.New("loan: not found")
