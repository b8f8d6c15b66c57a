package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pavelanni/qpaper/internal/handler/views"
	appI18n "github.com/pavelanni/qpaper/internal/i18n"
	"github.com/pavelanni/qpaper/internal/importer"
	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/store"
)

// questionForm reads the add and edit question forms. A mark that is not a
// number reads as zero and fails validation.
func questionForm(r *http.Request) model.QuestionImport {
	marks := func(name string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue(name)))
		return n
	}
	checked := func(name string) bool {
		return r.PostFormValue(name) != ""
	}
	return model.QuestionImport{
		Content:      r.PostFormValue("content"),
		Marks:        marks("marks"),
		KLevel:       r.PostFormValue("k_level"),
		Part:         r.PostFormValue("part"),
		COLevel:      r.PostFormValue("co_level"),
		HasFormula:   checked("has_formula"),
		HasOr:        checked("has_or"),
		OrContent:    r.PostFormValue("or_content"),
		OrMarks:      marks("or_marks"),
		OrKLevel:     r.PostFormValue("or_k_level"),
		OrPart:       r.PostFormValue("or_part"),
		OrCOLevel:    r.PostFormValue("or_co_level"),
		OrHasFormula: checked("or_has_formula"),
	}
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	qi := questionForm(r)
	if errs := importer.Check(&qi); len(errs) > 0 {
		h.renderSubjectForm(w, r, http.StatusBadRequest, subj, qi, "", errs)
		return
	}

	var createdBy int64
	if u := model.UserFromContext(ctx); u != nil {
		createdBy = u.ID
	}
	id, err := h.store.InsertQuestion(ctx, importer.ToQuestion(qi, subj.ID, createdBy))
	if err != nil {
		slog.Error("failed to insert question", "subject", subj.Code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("question created", "subject", subj.Code, "id", id)
	h.renderSubject(w, r, http.StatusOK, subj, appI18n.T(ctx, "QuestionSaved"), nil)
}

// loadQuestion resolves {questionID} within subj, writing a 404 for a question of another subject.
func (h *Handler) loadQuestion(w http.ResponseWriter, r *http.Request, subj *model.Subject) (model.Question, bool) {
	qid, ok := idParam(r, "questionID")
	if !ok {
		http.Error(w, "invalid question ID", http.StatusBadRequest)
		return model.Question{}, false
	}
	q, err := h.store.GetQuestion(r.Context(), qid)
	if errors.Is(err, store.ErrNotFound) || (err == nil && q.SubjectID != subj.ID) {
		http.Error(w, appI18n.T(r.Context(), "ErrNotFound"), http.StatusNotFound)
		return model.Question{}, false
	}
	if err != nil {
		slog.Error("failed to get question", "id", qid, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return model.Question{}, false
	}
	return q, true
}

func (h *Handler) handleEditQuestionPage(w http.ResponseWriter, r *http.Request) {
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	q, ok := h.loadQuestion(w, r, subj)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, views.QuestionPage(views.QuestionData{
		Subject:    *subj,
		QuestionID: q.ID,
		Form:       importer.FromQuestion(q),
	}))
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	q, ok := h.loadQuestion(w, r, subj)
	if !ok {
		return
	}
	qi := questionForm(r)
	if errs := importer.Check(&qi); len(errs) > 0 {
		render(w, r, http.StatusBadRequest, views.QuestionPage(views.QuestionData{
			Subject:    *subj,
			QuestionID: q.ID,
			Form:       qi,
			Errors:     errs,
		}))
		return
	}

	updated := importer.ToQuestion(qi, subj.ID, q.CreatedBy)
	updated.ID = q.ID
	if err := h.store.UpdateQuestion(ctx, updated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, appI18n.T(ctx, "ErrNotFound"), http.StatusNotFound)
			return
		}
		slog.Error("failed to update question", "id", q.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("question updated", "subject", subj.Code, "id", q.ID)
	h.renderSubject(w, r, http.StatusOK, subj, appI18n.T(ctx, "QuestionSaved"), nil)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	qid, ok := idParam(r, "questionID")
	if !ok {
		http.Error(w, "invalid question ID", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteQuestion(r.Context(), subj.ID, qid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, appI18n.T(r.Context(), "ErrNotFound"), http.StatusNotFound)
			return
		}
		slog.Error("failed to delete question", "id", qid, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("question deleted", "subject", subj.Code, "id", qid)
	http.Redirect(w, r, h.path(fmt.Sprintf("/subjects/%d", subj.ID)), http.StatusSeeOther)
}
