package domain

import "time"

// Folder is a mail folder owned by exactly one user. UserID is assigned
// server-side from the authenticated caller, never from client input.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
