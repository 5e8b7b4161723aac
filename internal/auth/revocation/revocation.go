// Package revocation is the token revocation list consulted by the auth
// middleware. Entries expire with the token they revoke.
package revocation

import (
	"fmt"
	"time"

	"rcaflow/pkg/platform/sentinel"
)

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
