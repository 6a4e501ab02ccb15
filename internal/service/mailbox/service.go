package mailbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/avolkov/mailhub/internal/domain"
	"github.com/avolkov/mailhub/internal/repository"
)

// Service implements folder and message operations with per-resource
// ownership checks. Every operation takes the authenticated caller's id; the
// caller never supplies an owner field.
type Service struct {
	folders  repository.FolderRepository
	messages repository.MessageRepository
	logger   *slog.Logger
}

// New returns a mailbox service.
func New(folders repository.FolderRepository, messages repository.MessageRepository, logger *slog.Logger) Service {
	return Service{folders: folders, messages: messages, logger: logger}
}

var (
	// ErrInvalidFolderReference is returned when a message targets a folder
	// that does not exist or is not owned by the caller. The two causes are
	// not distinguished, so non-owners learn nothing about foreign folders.
	ErrInvalidFolderReference = errors.New("invalid folder reference")

	errFolderNameRequired = errors.New("folder name is required")
	errSubjectRequired    = errors.New("message subject is required")
)

// CreateMessageInput carries message creation attributes.
type CreateMessageInput struct {
	FolderID string `json:"folder_id"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
}

// CreateFolder creates a folder owned by the caller.
func (s Service) CreateFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errFolderNameRequired
	}
	folder := &domain.Folder{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.folders.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	s.logger.Info("folder created", "folder_id", folder.ID, "user_id", ownerID)
	return folder, nil
}

// ListFolders returns the caller's folders.
func (s Service) ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	return s.folders.ListFoldersByUser(ctx, ownerID)
}

// GetFolder returns the folder only to its owner. A folder owned by someone
// else reads as not found, so existence is not confirmed to non-owners.
func (s Service) GetFolder(ctx context.Context, ownerID, folderID string) (*domain.Folder, error) {
	folder, err := s.folders.GetFolderByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != ownerID {
		return nil, repository.ErrNotFound
	}
	return folder, nil
}

// CreateMessage stores a message in a folder the caller owns. A missing or
// foreign folder rejects with ErrInvalidFolderReference and nothing is
// persisted.
func (s Service) CreateMessage(ctx context.Context, ownerID string, input CreateMessageInput) (*domain.Message, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, errSubjectRequired
	}
	folder, err := s.folders.GetFolderByID(ctx, input.FolderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidFolderReference
		}
		return nil, err
	}
	if folder.UserID != ownerID {
		return nil, ErrInvalidFolderReference
	}
	message := &domain.Message{
		ID:        uuid.NewString(),
		FolderID:  folder.ID,
		Subject:   input.Subject,
		Content:   input.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, message); err != nil {
		return nil, err
	}
	s.logger.Info("message created", "message_id", message.ID, "folder_id", folder.ID)
	return message, nil
}

// ListMessages returns the messages in a folder the caller owns; any other
// folder reads as not found.
func (s Service) ListMessages(ctx context.Context, ownerID, folderID string) ([]domain.Message, error) {
	if _, err := s.GetFolder(ctx, ownerID, folderID); err != nil {
		return nil, err
	}
	return s.messages.ListMessagesByFolder(ctx, folderID)
}

// GetMessage returns a message only when the caller owns its folder.
func (s Service) GetMessage(ctx context.Context, ownerID, messageID string) (*domain.Message, error) {
	message, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetFolder(ctx, ownerID, message.FolderID); err != nil {
		return nil, err
	}
	return message, nil
}
