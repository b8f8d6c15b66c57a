// Package handler serves the web interface: sign-in, question banks, paper
// preview and download, and user administration.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/qpaper/internal/assemble"
	"github.com/pavelanni/qpaper/internal/blueprint"
	appI18n "github.com/pavelanni/qpaper/internal/i18n"
	"github.com/pavelanni/qpaper/internal/importer"
	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/paper"
	"github.com/pavelanni/qpaper/internal/selector"
	"github.com/pavelanni/qpaper/internal/store"
)

// TestTypes are offered in the paper form. Unit tests draw from one course outcome;
// a Model Exam paper is composed from hand-picked questions.
var TestTypes = []string{"Unit Test 1", "Unit Test 2", "Unit Test 3", "Unit Test 4", "Unit Test 5", "Model Exam"}

// Semesters are offered in the paper form.
var Semesters = []string{"1", "2", "3", "4", "5", "6", "7", "8"}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	papers *paper.Service
	config model.ServeConfig
}

// New creates a new Handler. The default blueprint must be registered.
func New(s *store.Store, papers *paper.Service, cfg model.ServeConfig) (*Handler, error) {
	if cfg.Blueprint == "" {
		cfg.Blueprint = blueprint.DefaultName
	}
	if _, err := papers.Blueprints().Get(cfg.Blueprint); err != nil {
		return nil, err
	}
	return &Handler{store: s, papers: papers, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/logout", h.handleLogout)
		r.Get("/", h.handleIndex)
		r.Post("/subjects", h.handleCreateSubject)
		r.Get("/subjects/{subjectID}", h.handleSubjectPage)
		r.Get("/subjects/{subjectID}/export", h.handleExportBank)
		r.Post("/subjects/{subjectID}/import", h.handleImport)
		r.Post("/subjects/{subjectID}/edit", h.handleUpdateSubject)
		r.Post("/subjects/{subjectID}/delete", h.handleDeleteSubject)
		r.Post("/subjects/{subjectID}/questions", h.handleCreateQuestion)
		r.Get("/subjects/{subjectID}/questions/{questionID}/edit", h.handleEditQuestionPage)
		r.Post("/subjects/{subjectID}/questions/{questionID}/edit", h.handleUpdateQuestion)
		r.Post("/subjects/{subjectID}/questions/{questionID}/delete", h.handleDeleteQuestion)
		r.Post("/papers/preview", h.handlePreview)
		r.Post("/papers/download", h.handleDownload)
		r.Post("/api/papers/select", h.handleAPISelect)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/admin/users", h.handleAdminUsersPage)
			r.Post("/admin/users", h.handleCreateUser)
			r.Post("/admin/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

// BasePathMiddleware makes the configured URL prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) assembleOptions() []assemble.Option {
	inst, err := h.store.GetInstitution()
	if err != nil {
		slog.Error("failed to load institution", "error", err)
		return nil
	}
	return []assemble.Option{assemble.WithInstitution(inst)}
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var shortage *selector.ShortageError
	var rowErrs importer.RowErrors
	switch {
	case errors.As(err, &shortage):
		return http.StatusUnprocessableEntity
	case paper.IsPrecondition(err), errors.As(err, &rowErrs), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

// errorMessage returns the text shown to the user for err.
func errorMessage(r *http.Request, err error) string {
	ctx := r.Context()
	var shortage *selector.ShortageError
	switch {
	case errors.As(err, &shortage):
		return appI18n.Td(ctx, "ErrShortage", map[string]any{
			"Part":      string(shortage.Part),
			"Marks":     shortage.Marks,
			"Required":  shortage.Required,
			"Available": shortage.Available,
		})
	case errors.Is(err, paper.ErrNoSubject):
		return appI18n.T(ctx, "ErrNoSubject")
	case errors.Is(err, paper.ErrEmptyPool):
		return appI18n.T(ctx, "ErrEmptyPool")
	case errors.Is(err, paper.ErrNoQuestions):
		return appI18n.T(ctx, "ErrNoQuestions")
	case errors.Is(err, paper.ErrUnknownQuestion):
		return appI18n.T(ctx, "ErrUnknownQuestion")
	case errors.Is(err, paper.ErrUnmappedTest):
		return appI18n.T(ctx, "ErrUnmappedTest")
	case errors.Is(err, blueprint.ErrUnknown):
		return appI18n.T(ctx, "ErrUnknownBlueprint")
	case errors.Is(err, store.ErrNotFound):
		return appI18n.T(ctx, "ErrNotFound")
	case errors.Is(err, errBadRequest):
		return appI18n.T(ctx, "ErrBadRequest")
	}
	return appI18n.T(ctx, "ErrInternal")
}

// fail logs unexpected errors and renders err on the start page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.Info("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	h.renderIndex(w, r, status, "", errorMessage(r, err))
}

func formValues(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
