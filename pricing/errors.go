package pricing

import (
	"errors"
	"fmt"
)

// ErrZeroBookAverage marks a period whose book average is zero or
// negative. The policy is to raise rather than let NaN or Inf propagate
// into premiums.
var ErrZeroBookAverage = errors.New("non-positive book average")

// BookAverageError reports which period carried the bad book average.
type BookAverageError struct {
	Period string
	Value  float64
}

func (e *BookAverageError) Error() string {
	return fmt.Sprintf("period %s: book average %g: %v", e.Period, e.Value, ErrZeroBookAverage)
}

func (e *BookAverageError) Unwrap() error {
	return ErrZeroBookAverage
}

// CustomerError is a failure confined to one customer's chain. Other
// customers keep processing; the run reports the failed IDs and exits
// non-zero.
type CustomerError struct {
	CustomerID string
	Err        error
}

func (e *CustomerError) Error() string {
	return fmt.Sprintf("customer %s: %v", e.CustomerID, e.Err)
}

func (e *CustomerError) Unwrap() error {
	return e.Err
}
