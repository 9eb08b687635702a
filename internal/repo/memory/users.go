package memory

import (
	"context"
	"fmt"

	"grocery/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := txFrom(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[user.Username]; taken {
		return fmt.Errorf("create user %q: %w", user.Username, models.ErrConflict)
	}
	user.ID = s.nextID(&s.seq.user)
	user.CreatedAt = s.now()

	if t != nil {
		t.users = append(t.users, *user)
		return nil
	}
	s.users[user.ID] = *user
	s.usernames[user.Username] = user.ID
	return nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, fmt.Errorf("find user: %w", models.ErrNotFound)
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("find user: %w", models.ErrNotFound)
	}
	return &u, nil
}
