package session

import "time"

// Record is the durable mapping from a logical conversation to its remote
// agent thread. At most one live record exists per conversation id; a record
// is live while now - LastUsed stays inside the resolver's expiry window.
type Record struct {
	ConversationID string    `json:"conversation_id"`
	ThreadID       string    `json:"thread_id"`
	LastUsed       time.Time `json:"last_used"`
}

// Clone creates a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cloned := *r
	return &cloned
}

// LiveAt reports whether the record is still live at the given instant for
// the given expiry window.
func (r *Record) LiveAt(now time.Time, window time.Duration) bool {
	return now.Sub(r.LastUsed) < window
}
