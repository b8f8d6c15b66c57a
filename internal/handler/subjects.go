package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/qpaper/internal/handler/views"
	appI18n "github.com/pavelanni/qpaper/internal/i18n"
	"github.com/pavelanni/qpaper/internal/importer"
	"github.com/pavelanni/qpaper/internal/model"
)

const maxUploadSize = 10 << 20

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, "", "")
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, msg, errMsg string) {
	ctx := r.Context()
	subjects, err := h.store.ListSubjects(ctx)
	if err != nil {
		slog.Error("failed to list subjects", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data := views.IndexData{
		Blueprints: h.papers.Blueprints().Names(),
		Blueprint:  h.config.Blueprint,
		Tests:      TestTypes,
		Semesters:  Semesters,
		Message:    msg,
		Error:      errMsg,
	}
	for _, s := range subjects {
		n, err := h.store.QuestionCount(ctx, s.ID)
		if err != nil {
			slog.Error("failed to count questions", "subject", s.Code, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		data.Subjects = append(data.Subjects, views.SubjectSummary{Subject: s, Count: n})
	}
	render(w, r, status, views.IndexPage(data))
}

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.ToUpper(strings.TrimSpace(r.FormValue("code")))
	name := strings.TrimSpace(r.FormValue("name"))
	if code == "" || name == "" {
		h.renderIndex(w, r, http.StatusBadRequest, "", appI18n.T(ctx, "ErrBadRequest"))
		return
	}

	existing, err := h.store.SubjectByCode(ctx, code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if existing != nil {
		h.renderIndex(w, r, http.StatusBadRequest, "", appI18n.Td(ctx, "ErrSubjectExists", map[string]any{"Code": code}))
		return
	}
	id, err := h.store.CreateSubject(ctx, code, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("subject created", "id", id, "code", code)
	http.Redirect(w, r, h.path(fmt.Sprintf("/subjects/%d", id)), http.StatusSeeOther)
}

func (h *Handler) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(r.FormValue("code")))
	name := strings.TrimSpace(r.FormValue("name"))
	if code == "" || name == "" {
		h.renderSubject(w, r, http.StatusBadRequest, subj, "", []string{appI18n.T(ctx, "ErrBadRequest")})
		return
	}

	existing, err := h.store.SubjectByCode(ctx, code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if existing != nil && existing.ID != subj.ID {
		msg := appI18n.Td(ctx, "ErrSubjectExists", map[string]any{"Code": code})
		h.renderSubject(w, r, http.StatusBadRequest, subj, "", []string{msg})
		return
	}
	if err := h.store.UpdateSubject(ctx, subj.ID, code, name); err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("subject updated", "id", subj.ID, "code", code)
	subj.Code, subj.Name = code, name
	h.renderSubject(w, r, http.StatusOK, subj, appI18n.T(ctx, "SubjectUpdated"), nil)
}

func (h *Handler) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteSubject(r.Context(), subj.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("subject deleted", "id", subj.ID, "code", subj.Code)
	h.renderIndex(w, r, http.StatusOK, appI18n.Td(r.Context(), "SubjectDeleted", map[string]any{"Code": subj.Code}), "")
}

// loadSubject resolves the {subjectID} parameter, writing a 404 when it does not exist.
func (h *Handler) loadSubject(w http.ResponseWriter, r *http.Request) (*model.Subject, bool) {
	id, ok := idParam(r, "subjectID")
	if !ok {
		http.Error(w, "invalid subject ID", http.StatusBadRequest)
		return nil, false
	}
	subj, err := h.store.SubjectByID(r.Context(), id)
	if err != nil {
		slog.Error("failed to get subject", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if subj == nil {
		http.Error(w, appI18n.T(r.Context(), "ErrNotFound"), http.StatusNotFound)
		return nil, false
	}
	return subj, true
}

func (h *Handler) renderSubject(w http.ResponseWriter, r *http.Request, status int, subj *model.Subject, msg string, errs []string) {
	h.renderSubjectForm(w, r, status, subj, model.QuestionImport{}, msg, errs)
}

// renderSubjectForm is renderSubject with the add-question form refilled from form.
func (h *Handler) renderSubjectForm(w http.ResponseWriter, r *http.Request, status int, subj *model.Subject, form model.QuestionImport, msg string, errs []string) {
	qs, err := h.store.QuestionsForSubject(r.Context(), subj.ID)
	if err != nil {
		slog.Error("failed to list questions", "subject", subj.Code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	render(w, r, status, views.SubjectPage(views.SubjectData{
		Subject:   *subj,
		Questions: qs,
		Tests:     TestTypes,
		Form:      form,
		Message:   msg,
		Errors:    errs,
	}))
}

func (h *Handler) handleSubjectPage(w http.ResponseWriter, r *http.Request) {
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	h.renderSubject(w, r, http.StatusOK, subj, "", nil)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.renderSubject(w, r, http.StatusBadRequest, subj, "", []string{"file too large or malformed upload"})
		return
	}
	file, header, err := r.FormFile("questions_file")
	if err != nil {
		h.renderSubject(w, r, http.StatusBadRequest, subj, "", []string{"no file uploaded"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		slog.Error("failed to read upload", "error", err)
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	hash := importer.Checksum(data)
	stored, err := h.store.GetImportedFileHash(ctx, subj.ID, header.Filename)
	if err != nil {
		slog.Error("failed to check import status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if stored == hash {
		h.renderSubject(w, r, http.StatusOK, subj, appI18n.T(ctx, "ImportDuplicate"), nil)
		return
	}

	rows, err := importer.Parse(header.Filename, bytes.NewReader(data))
	if err != nil {
		var rowErrs importer.RowErrors
		if errors.As(err, &rowErrs) {
			msgs := make([]string, len(rowErrs))
			for i, e := range rowErrs {
				msgs[i] = e.Error()
			}
			h.renderSubject(w, r, http.StatusBadRequest, subj, "", msgs)
			return
		}
		h.renderSubject(w, r, http.StatusBadRequest, subj, "", []string{err.Error()})
		return
	}

	var createdBy int64
	if u := model.UserFromContext(ctx); u != nil {
		createdBy = u.ID
	}
	qs := make([]model.Question, len(rows))
	for i, qi := range rows {
		qs[i] = importer.ToQuestion(qi, subj.ID, createdBy)
	}
	if err := h.store.InsertQuestions(ctx, qs); err != nil {
		slog.Error("failed to insert questions", "subject", subj.Code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.store.SetImportedFileHash(ctx, subj.ID, header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("imported questions", "subject", subj.Code, "filename", header.Filename, "count", len(qs))
	h.renderSubject(w, r, http.StatusOK, subj, appI18n.Tp(ctx, "Imported", len(qs)), nil)
}

func (h *Handler) handleExportBank(w http.ResponseWriter, r *http.Request) {
	subj, ok := h.loadSubject(w, r)
	if !ok {
		return
	}
	bank, err := h.store.ExportBank(r.Context(), subj.ID)
	if err != nil {
		slog.Error("failed to export bank", "subject", subj.Code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data, err := json.MarshalIndent(bank, "", "  ")
	if err != nil {
		slog.Error("failed to marshal bank", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	name := fmt.Sprintf("%s_bank_%s.json", subj.Code, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}
