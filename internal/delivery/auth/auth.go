package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	errs "goplay/internal/errors"
	"goplay/internal/httpresponse"
)

const SessionCookie = "sessionID"

type IdentityUseCase interface {
	GetUserIdFromSession(ctx context.Context, sessionID string) (string, error)
}

type AuthHandler struct {
	identity IdentityUseCase
	log      *zap.SugaredLogger
}

func NewAuthHandler(identity IdentityUseCase, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{identity: identity, log: log}
}

// GetUserID resolves the session cookie to a user id. On failure it writes
// the error response itself and returns an empty id.
func (a *AuthHandler) GetUserID(w http.ResponseWriter, r *http.Request) string {
	sessionCookie, err := r.Cookie(SessionCookie)
	if err != nil {
		a.log.Debugw("GetUserID: no session cookie", "err", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusUnauthorized,
			httpresponse.ErrorResponse{ErrorDescription: "session cookie is missing"})
		return ""
	}

	userID, err := a.identity.GetUserIdFromSession(r.Context(), sessionCookie.Value)
	if err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			a.log.Debugw("GetUserID: session not found or expired")
			httpresponse.WriteResponseWithStatus(w, http.StatusUnauthorized,
				httpresponse.ErrorResponse{ErrorDescription: errs.ErrSessionNotFound.Error()})
			return ""
		}
		a.log.Errorw("GetUserID: session lookup failed", "err", err)
		httpresponse.WriteInternalErrorResponse(w)
		return ""
	}

	return userID
}
