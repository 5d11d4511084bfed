package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// New returns a fresh random entity id.
func New() string {
	return uuid.NewString()
}

// TransactionKey identifies a transaction for duplicate detection: two
// transactions in the same account are duplicates when date, amount and
// payee all match exactly.
func TransactionKey(accountID string, date time.Time, amount decimal.Decimal, payee string) string {
	return fmt.Sprintf("%s|%d|%s|%s", accountID, date.UTC().Truncate(time.Microsecond).UnixMicro(), amount.StringFixed(2), payee)
}
