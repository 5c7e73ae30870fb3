package domain

import "time"

// RateLimitWindow is the per (user, action) request log backing the sliding
// window limiter. Requests holds millisecond timestamps in insertion order;
// entries older than the window are pruned on every check, so the document
// stays bounded by the window size.
type RateLimitWindow struct {
	Key       string    `bson:"_id" json:"key"` // "<userID>:<action>"
	Requests  []int64   `bson:"requests" json:"requests"`
	LastReset time.Time `bson:"last_reset" json:"last_reset"`
}

// RateLimitKey builds the document key for a (user, action) pair.
func RateLimitKey(userID, action string) string {
	return userID + ":" + action
}
