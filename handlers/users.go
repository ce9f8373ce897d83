package handlers

import (
	"net/http"
	"strings"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/service"
)

type UsersHandler struct {
	Accounts *service.AccountService
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Create adds an account. Admin only.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role := models.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err := validate(
		required("email", req.Email),
		required("password", req.Password),
		optional(string(role), oneOf("role", role, models.ValidRoles)),
	); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.Accounts.CreateUser(r.Context(), p, service.UserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Role:     role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, user)
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	role := models.Role(strings.ToUpper(r.URL.Query().Get("role")))
	if err := validate(optional(string(role), oneOf("role", role, models.ValidRoles))); err != nil {
		writeError(w, r, err)
		return
	}
	users, err := h.Accounts.List(r.Context(), p, role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, users)
}
