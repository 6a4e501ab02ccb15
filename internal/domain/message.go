package domain

import "time"

// Message lives inside a folder; its effective owner is the folder's owner.
// CreatedAt is assigned server-side at creation.
type Message struct {
	ID        string    `json:"id"`
	FolderID  string    `json:"folder_id"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
