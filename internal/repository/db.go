package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

// storeError tags err so callers can tell a rejected write from an unreachable store.
func storeError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidRequest, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
