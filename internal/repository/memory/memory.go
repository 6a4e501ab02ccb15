package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/avolkov/mailhub/internal/domain"
	"github.com/avolkov/mailhub/internal/repository"
)

// Store is a mutex-guarded in-memory implementation of the repository
// interfaces. It backs tests and the no-Redis order fallback; uniqueness
// checks happen under the lock, so insert-if-absent is atomic.
type Store struct {
	mu         sync.RWMutex
	users      map[string]domain.User // keyed by id
	byUsername map[string]string      // username -> id
	folders    map[string]domain.Folder
	messages   map[string]domain.Message
	orders     map[int64]domain.Order
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users:      make(map[string]domain.User),
		byUsername: make(map[string]string),
		folders:    make(map[string]domain.Folder),
		messages:   make(map[string]domain.Message),
		orders:     make(map[int64]domain.Order),
	}
}

var (
	_ repository.UserRepository    = (*Store)(nil)
	_ repository.FolderRepository  = (*Store)(nil)
	_ repository.MessageRepository = (*Store)(nil)
	_ repository.OrderRepository   = (*Store)(nil)
)

// CreateUser inserts a user unless the username is taken.
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[user.Username]; taken {
		return repository.ErrConflict
	}
	s.users[user.ID] = *user
	s.byUsername[user.Username] = user.ID
	return nil
}

// GetUserByUsername fetches a user by exact, case-sensitive username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

// GetUserByID fetches a user by identifier.
func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// SearchUsers matches first and last name fragments case-insensitively.
func (s *Store) SearchUsers(_ context.Context, firstName, lastName string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	first := strings.ToLower(firstName)
	last := strings.ToLower(lastName)
	var out []domain.User
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.FirstName), first) &&
			strings.Contains(strings.ToLower(u.LastName), last) {
			out = append(out, u)
		}
	}
	return out, nil
}

// CreateFolder inserts a folder.
func (s *Store) CreateFolder(_ context.Context, folder *domain.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folder.ID] = *folder
	return nil
}

// GetFolderByID fetches a folder.
func (s *Store) GetFolderByID(_ context.Context, id string) (*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

// ListFoldersByUser returns the folders owned by a user.
func (s *Store) ListFoldersByUser(_ context.Context, userID string) ([]domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Folder
	for _, f := range s.folders {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

// CreateMessage inserts a message.
func (s *Store) CreateMessage(_ context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.ID] = *message
	return nil
}

// GetMessageByID fetches a message.
func (s *Store) GetMessageByID(_ context.Context, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

// ListMessagesByFolder returns the messages in a folder.
func (s *Store) ListMessagesByFolder(_ context.Context, folderID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.FolderID == folderID {
			out = append(out, m)
		}
	}
	return out, nil
}

// CreateOrder inserts an order unless the order number is taken.
func (s *Store) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.orders[order.OrderNumber]; taken {
		return repository.ErrConflict
	}
	s.orders[order.OrderNumber] = *order
	return nil
}

// GetOrderByNumber fetches an order by its unique number.
func (s *Store) GetOrderByNumber(_ context.Context, number int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[number]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}
