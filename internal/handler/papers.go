package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pavelanni/qpaper/internal/assemble"
	"github.com/pavelanni/qpaper/internal/docx"
	"github.com/pavelanni/qpaper/internal/handler/views"
	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/paper"
)

// selectRequest is the body of /api/papers/select. Non-empty QuestionIDs
// compose the paper from those questions instead of drawing one.
type selectRequest struct {
	SubjectID   int64   `json:"subject_id"`
	Test        string  `json:"test"`
	Blueprint   string  `json:"blueprint"`
	Seed        uint64  `json:"seed"`
	QuestionIDs []int64 `json:"question_ids"`
}

func (h *Handler) choose(ctx context.Context, req selectRequest) (*paper.Selection, error) {
	if len(req.QuestionIDs) > 0 {
		return h.papers.Compose(ctx, req.SubjectID, req.QuestionIDs)
	}
	return h.papers.AutoSelect(ctx, paper.Request{
		SubjectID: req.SubjectID,
		Test:      req.Test,
		Blueprint: req.Blueprint,
		Seed:      req.Seed,
	})
}

func metaFromForm(f url.Values) model.PaperMeta {
	return model.PaperMeta{
		Departments: formValues(f["department"]),
		Years:       formValues(f["year"]),
		Semesters:   formValues(f["semester"]),
		Tests:       formValues(f["tests"]),
		Duration:    strings.TrimSpace(f.Get("duration")),
		Dates:       formValues(f["date"]),
		Regulations: formValues(f["regulations"]),
	}
}

// selectFromForm resolves the paper form into a selection and its header metadata.
func (h *Handler) selectFromForm(r *http.Request) (*paper.Selection, model.PaperMeta, error) {
	if err := r.ParseForm(); err != nil {
		return nil, model.PaperMeta{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	meta := metaFromForm(r.PostForm)
	req := selectRequest{Blueprint: strings.TrimSpace(r.PostForm.Get("blueprint"))}
	if len(meta.Tests) > 0 {
		req.Test = meta.Tests[0]
	}
	if v := strings.TrimSpace(r.PostForm.Get("subject_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, meta, fmt.Errorf("%w: subject_id %q", errBadRequest, v)
		}
		req.SubjectID = id
	}
	if v := strings.TrimSpace(r.PostForm.Get("seed")); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, meta, fmt.Errorf("%w: seed %q", errBadRequest, v)
		}
		req.Seed = seed
	}
	for _, v := range r.PostForm["question_id"] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, meta, fmt.Errorf("%w: question_id %q", errBadRequest, v)
		}
		req.QuestionIDs = append(req.QuestionIDs, id)
	}

	sel, err := h.choose(r.Context(), req)
	return sel, meta, err
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	sel, meta, err := h.selectFromForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc := h.papers.Render(sel, meta, h.assembleOptions()...)

	// The download repeats this request with the drawn seed fixed.
	fields := url.Values{}
	for k, vs := range r.PostForm {
		if k != "csrf_token" && k != "seed" {
			fields[k] = vs
		}
	}
	if sel.Seed != 0 {
		fields.Set("seed", strconv.FormatUint(sel.Seed, 10))
	}
	render(w, r, http.StatusOK, views.PreviewPage(views.PreviewData{Doc: doc, Fields: fields, Seed: sel.Seed}))
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	sel, meta, err := h.selectFromForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.papers.Write(&buf, h.papers.Render(sel, meta, h.assembleOptions()...)); err != nil {
		h.fail(w, r, err)
		return
	}

	name := assemble.Filename(sel.Subject.Code)
	slog.Info("paper downloaded", "subject", sel.Subject.Code, "seed", sel.Seed,
		"questions", len(sel.Entries), "bytes", buf.Len())
	w.Header().Set("Content-Type", docx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = io.Copy(w, &buf)
}

func (h *Handler) handleAPISelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	sel, err := h.choose(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("selection failed", "error", err)
		}
		writeJSON(w, status, map[string]string{"error": errorMessage(r, err)})
		return
	}
	writeJSON(w, http.StatusOK, sel)
}
