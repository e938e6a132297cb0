package scan

import (
	"time"

	"github.com/sawpanic/putscan/internal/domain"
)

// NextWeeklyExpiry returns the Friday the weekly options in play on now's
// UTC date expire. On a Friday that is the following week's Friday.
func NextWeeklyExpiry(now time.Time) time.Time {
	today := domain.Date(now)
	offset := (int(time.Friday) - int(today.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return today.AddDate(0, 0, offset)
}
