package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/qpaper/internal/handler/views"
	"github.com/pavelanni/qpaper/internal/model"
)

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	render(w, r, status, views.AdminUsersPage(users, errMsg))
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, "")
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	password := r.FormValue("password")
	role := model.UserRole(r.FormValue("role"))
	if role == "" {
		role = model.UserRoleTeacher
	}

	if username == "" || password == "" {
		h.renderUsers(w, r, http.StatusBadRequest, "username and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if displayName == "" {
		displayName = username
	}

	id, err := h.store.CreateUser(model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		slog.Warn("failed to create user", "username", username, "error", err)
		h.renderUsers(w, r, http.StatusBadRequest, "failed to create user: "+err.Error())
		return
	}
	slog.Info("user created", "id", id, "username", username, "role", role)
	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "userID")
	if !ok {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	if me := model.UserFromContext(r.Context()); me != nil && me.ID == id {
		h.renderUsers(w, r, http.StatusBadRequest, "you cannot disable your own account")
		return
	}

	u, err := h.store.GetUserByID(id)
	if err != nil {
		slog.Error("failed to get user", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if u == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err := h.store.SetUserActive(id, !u.Active); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("user active flag changed", "id", id, "active", !u.Active)
	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}
