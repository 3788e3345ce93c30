package domain

import "time"

// StoredSession is a durable, reusable authorization for an external
// messaging network account, scoped to the bot user who created it.
// Sessions are deactivated, never deleted; a deactivated row is not
// resurrected without re-authentication.
type StoredSession struct {
	ID           int64
	OwnerID      int64
	Phone        string
	SessionToken string
	IsActive     bool
	CreatedAt    time.Time
	LastUsed     time.Time
}
