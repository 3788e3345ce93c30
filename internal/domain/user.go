package domain

import "time"

// User represents a bot user stored in the database.
type User struct {
	ID           int64
	TelegramID   int64
	FirstName    string
	LastName     string
	Username     string
	Lang         string
	LastActiveAt time.Time
	CreatedAt    time.Time
}
