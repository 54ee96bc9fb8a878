package billing

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds returned by the billing services. Callers classify with errors.Is.
var (
	ErrNotFound           = errors.New("account not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrConflict           = errors.New("external identity conflict")
	ErrInvalidState       = errors.New("invalid ledger state")
	ErrServiceUnavailable = errors.New("entitlement source unavailable")
	ErrInternal           = errors.New("internal error")
)

// persistError classifies a failed ledger write. An account removed between
// load and write is NotFound; anything else is Internal.
func persistError(what, accountID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	return fmt.Errorf("%w: persist %s for %s: %v", ErrInternal, what, accountID, err)
}
