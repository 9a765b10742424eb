package hierarchy

import (
	"fmt"

	"github.com/ammiranda/menutree/repository"
)

// The error taxonomy is shared with the record store so that store-level
// constraint violations and engine-level precondition failures match the
// same sentinel. Match with errors.Is.
var (
	ErrNotFound           = repository.ErrNotFound
	ErrConflict           = repository.ErrConflict
	ErrInvalidArgument    = repository.ErrInvalidArgument
	ErrTransactionAborted = repository.ErrTransactionAborted
	ErrStoreUnavailable   = repository.ErrStoreUnavailable
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}
