package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MintOrderNumber derives a human-readable order number from the placement
// date and the order id: SO-YYYYMMDD-XXXXXX.
func MintOrderNumber(placedAt time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
	return fmt.Sprintf("SO-%s-%s", placedAt.UTC().Format("20060102"), suffix)
}
