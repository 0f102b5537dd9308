package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	errs "goplay/internal/errors"
)

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) GetUserIdFromSession(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func TestAuthHandler_GetUserID(t *testing.T) {
	t.Run("valid session", func(t *testing.T) {
		identity := &mockIdentity{}
		identity.On("GetUserIdFromSession", mock.Anything, "abc").Return("alice", nil)
		handler := NewAuthHandler(identity, zap.NewNop().Sugar())
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
		w := httptest.NewRecorder()

		assert.Equal(t, "alice", handler.GetUserID(w, r))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing cookie", func(t *testing.T) {
		handler := NewAuthHandler(&mockIdentity{}, zap.NewNop().Sugar())
		w := httptest.NewRecorder()

		assert.Empty(t, handler.GetUserID(w, httptest.NewRequest(http.MethodGet, "/ws", nil)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired session", func(t *testing.T) {
		identity := &mockIdentity{}
		identity.On("GetUserIdFromSession", mock.Anything, "old").Return("", errs.ErrSessionNotFound)
		handler := NewAuthHandler(identity, zap.NewNop().Sugar())
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "old"})
		w := httptest.NewRecorder()

		assert.Empty(t, handler.GetUserID(w, r))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		identity := &mockIdentity{}
		identity.On("GetUserIdFromSession", mock.Anything, "abc").Return("", errors.New("redis down"))
		handler := NewAuthHandler(identity, zap.NewNop().Sugar())
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
		w := httptest.NewRecorder()

		assert.Empty(t, handler.GetUserID(w, r))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
