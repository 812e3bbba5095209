//go:build property
// +build property

package fetcher

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Backoff delays must never exceed the configured cap, and must be
// nondecreasing in the attempt number.
func TestPropertyBackoffBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("backoff never exceeds max delay", prop.ForAll(
		func(initialMs int, maxMs int, attempt int) bool {
			policy := RetryPolicy{
				MaxRetries:   10,
				InitialDelay: time.Duration(initialMs) * time.Millisecond,
				MaxDelay:     time.Duration(maxMs) * time.Millisecond,
			}
			return policy.Backoff(attempt) <= policy.MaxDelay
		},
		gen.IntRange(1, 1000),
		gen.IntRange(1000, 60000),
		gen.IntRange(1, 30),
	))

	properties.Property("backoff is nondecreasing", prop.ForAll(
		func(initialMs int, attempt int) bool {
			policy := RetryPolicy{
				MaxRetries:   10,
				InitialDelay: time.Duration(initialMs) * time.Millisecond,
				MaxDelay:     time.Minute,
			}
			return policy.Backoff(attempt+1) >= policy.Backoff(attempt)
		},
		gen.IntRange(1, 1000),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
