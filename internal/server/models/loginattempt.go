package models

import "time"

// LoginAttempt records one failed password login, keyed by the submitted
// email and source address. Rows are counted over a sliding window to decide
// lockouts and purged periodically.
type LoginAttempt struct {
	ID          int64
	Email       string
	IPAddress   string
	AttemptedAt time.Time
}
