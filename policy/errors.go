package policy

import "github.com/go-errors/errors"

// ErrBudgetExceeded is returned when a job's cost would push
// hourly_spend_if_buyer past the configured budget.
var ErrBudgetExceeded = errors.New("policy: budget exceeded")

// DeniedError reports a non-budget denial reason from Evaluate.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "policy: denied: " + e.Reason
}
