package trajectory

import "errors"

var (
	// ErrNoRows is returned when a file contains no valid data rows after
	// comment and blank stripping.
	ErrNoRows = errors.New("no valid data rows found")

	// ErrNoTCPRows is returned when a TCP file contains no valid rows.
	ErrNoTCPRows = errors.New("no valid TCP rows found")
)
