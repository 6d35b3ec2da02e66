package domain

import "time"

// SweepInactive returns the user ids of records idle for longer than the
// retention window. Records with an unused request id are skipped: a
// quote callback may still arrive for them.
func SweepInactive(records []*BookingRecord, now time.Time, window time.Duration) []string {
	var expired []string
	for _, r := range records {
		if r.HasUnusedRequestID() {
			continue
		}
		if now.Sub(r.UpdatedAt) > window {
			expired = append(expired, r.UserID)
		}
	}
	return expired
}
