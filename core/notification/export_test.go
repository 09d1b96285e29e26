package notification

import "time"

// SetNow replaces the clock used for new notifications and retention.
func SetNow(now func() time.Time) {
	nowFunc = func() time.Time { return now().UTC() }
}
