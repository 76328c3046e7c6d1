// Package guard suppresses duplicate prints of the same order.
//
// A guard answers "may this order be printed now?" and records the admission
// in the same atomic step, so of several concurrent callers asking about one
// order exactly one is told yes.
package guard

import (
	"context"
	"time"
)

const (
	DefaultWindow     = 2 * time.Minute
	DefaultMaxEntries = 10000
)

type Guard interface {
	// CanPrint admits orderID unless it was admitted less than one window ago.
	CanPrint(ctx context.Context, orderID string) (bool, error)
	// Release forgets an admission so a later request may print again.
	Release(ctx context.Context, orderID string) error
}

// Clock returns the current time. Tests substitute a controllable one.
type Clock func() time.Time
