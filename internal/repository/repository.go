package repository

import (
	"context"

	"github.com/avolkov/mailhub/internal/domain"
)

// UserRepository persists mail accounts. CreateUser returns ErrConflict when
// the username is already taken; the check is atomic with the insert.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	SearchUsers(ctx context.Context, firstName, lastName string) ([]domain.User, error)
}

// FolderRepository persists folders.
type FolderRepository interface {
	CreateFolder(ctx context.Context, folder *domain.Folder) error
	GetFolderByID(ctx context.Context, id string) (*domain.Folder, error)
	ListFoldersByUser(ctx context.Context, userID string) ([]domain.Folder, error)
}

// MessageRepository persists messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessageByID(ctx context.Context, id string) (*domain.Message, error)
	ListMessagesByFolder(ctx context.Context, folderID string) ([]domain.Message, error)
}

// OrderRepository persists order records keyed by order number. CreateOrder
// returns ErrConflict when the number is already taken.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByNumber(ctx context.Context, number int64) (*domain.Order, error)
}
