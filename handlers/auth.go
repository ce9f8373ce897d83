package handlers

import (
	"net/http"
	"time"

	"github.com/kevinaaaquil/unilib/middleware"
	"github.com/kevinaaaquil/unilib/service"
)

type AuthHandler struct {
	Accounts  *service.AccountService
	JWTSecret string
	TokenTTL  time.Duration
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      any       `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate(required("email", req.Email), required("password", req.Password)); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, exp, err := middleware.IssueToken(h.JWTSecret, user, h.TokenTTL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp, User: user})
}

// Me returns the caller's account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.Accounts.Get(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}
