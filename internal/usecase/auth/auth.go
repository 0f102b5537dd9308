package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionTTL is how long a locally issued session stays valid.
const SessionTTL = 11 * time.Hour

type SessionStorage interface {
	GetUserIDBySession(ctx context.Context, sessionID string) (string, error)
	StoreSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// IdentityUseCase turns session cookies into verified user ids. Accounts and
// logins belong to the identity provider; IssueSession exists for local play.
type IdentityUseCase struct {
	sessions SessionStorage
}

func NewIdentityUseCase(sessions SessionStorage) *IdentityUseCase {
	return &IdentityUseCase{sessions: sessions}
}

// GetUserIdFromSession returns errors.ErrSessionNotFound for unknown or expired sessions.
func (a *IdentityUseCase) GetUserIdFromSession(ctx context.Context, sessionID string) (string, error) {
	return a.sessions.GetUserIDBySession(ctx, sessionID)
}

func (a *IdentityUseCase) IssueSession(ctx context.Context, userID string) (string, error) {
	sessionID := uuid.NewString()
	if err := a.sessions.StoreSession(ctx, sessionID, userID, SessionTTL); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (a *IdentityUseCase) RevokeSession(ctx context.Context, sessionID string) error {
	return a.sessions.DeleteSession(ctx, sessionID)
}
