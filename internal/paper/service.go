// Package paper runs the generation pipeline: precondition checks, course
// outcome scoping, selection or explicit composition, assembly and writing.
package paper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/pavelanni/qpaper/internal/assemble"
	"github.com/pavelanni/qpaper/internal/blueprint"
	"github.com/pavelanni/qpaper/internal/document"
	"github.com/pavelanni/qpaper/internal/mapper"
	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/selector"
)

var (
	// ErrNoSubject is returned when no subject is given or the subject does not exist.
	ErrNoSubject = errors.New("no subject selected")
	// ErrEmptyPool is returned when the subject has no candidate questions in scope.
	ErrEmptyPool = errors.New("no questions available for this subject")
	// ErrNoQuestions is returned when an explicit composition names no questions.
	ErrNoQuestions = errors.New("no questions chosen")
	// ErrUnknownQuestion is returned when an explicit composition names a question outside the subject.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrUnmappedTest is returned when an automatic draw names a test type that maps to no course outcome.
	ErrUnmappedTest = errors.New("could not map test to a course outcome")
)

// Repository supplies question bank records.
type Repository interface {
	// SubjectByID returns nil, nil when the subject does not exist.
	SubjectByID(ctx context.Context, id int64) (*model.Subject, error)
	// Candidates returns a subject's questions tagged co, or all of them when co is empty.
	Candidates(ctx context.Context, subjectID int64, co model.COLevel) ([]model.Question, error)
	QuestionsForSubject(ctx context.Context, subjectID int64) ([]model.Question, error)
	QuestionsByIDs(ctx context.Context, subjectID int64, ids []int64) ([]model.Question, error)
}

// Writer serializes a document tree.
type Writer interface {
	Write(w io.Writer, doc *document.Document) error
}

// Request asks for an automatic selection.
type Request struct {
	SubjectID int64
	Test      string // test type; must be "Unit Test N", which scopes the pool to CON
	Blueprint string // empty means the default blueprint
	Seed      uint64 // zero picks a fresh seed
}

// Selection is the outcome of AutoSelect or Compose.
type Selection struct {
	Subject   model.Subject         `json:"subject"`
	Scope     model.COLevel         `json:"scope,omitempty"`
	Blueprint string                `json:"blueprint,omitempty"`
	Seed      uint64                `json:"seed,omitempty"`
	Entries   []model.PaperQuestion `json:"entries"`
}

// Service wires a repository, the blueprint registry and a writer.
type Service struct {
	repo       Repository
	blueprints *blueprint.Registry
	writer     Writer
}

// NewService creates a service. A nil registry means built-in blueprints only.
func NewService(repo Repository, blueprints *blueprint.Registry, w Writer) *Service {
	if blueprints == nil {
		blueprints = blueprint.NewRegistry()
	}
	return &Service{repo: repo, blueprints: blueprints, writer: w}
}

// Blueprints returns the registry the service selects against.
func (s *Service) Blueprints() *blueprint.Registry {
	return s.blueprints
}

// Scope maps a test type to the course outcome its questions are drawn from.
// Unit tests 1 to 5 map to CO1 to CO5; anything else maps to nothing.
func Scope(test string) model.COLevel {
	n, ok := assemble.UnitTestNumber(test)
	if !ok || n < 1 || n > len(model.COLevels) {
		return ""
	}
	return model.COLevels[n-1]
}

// AutoSelect draws a paper for req. A request repeated with the returned seed
// over an unchanged bank draws the same questions.
func (s *Service) AutoSelect(ctx context.Context, req Request) (*Selection, error) {
	subj, err := s.subject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	bp, err := s.blueprints.Get(req.Blueprint)
	if err != nil {
		return nil, err
	}

	scope := Scope(req.Test)
	if scope == "" {
		slog.Info("test type not mapped to a course outcome", "subject", subj.Code, "test", req.Test)
		return nil, fmt.Errorf("%w: %q", ErrUnmappedTest, req.Test)
	}
	pool, err := s.repo.Candidates(ctx, subj.ID, scope)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	seed := req.Seed
	for seed == 0 {
		seed = rand.Uint64()
	}
	entries, err := selector.Select(pool, bp, selector.WithSeed(seed))
	if err != nil {
		slog.Info("selection failed", "subject", subj.Code, "blueprint", bp.Name, "scope", scope, "error", err)
		return nil, err
	}
	slog.Info("questions selected",
		"subject", subj.Code, "blueprint", bp.Name, "scope", scope,
		"pool", len(pool), "entries", len(entries), "seed", seed)

	return &Selection{
		Subject:   *subj,
		Scope:     scope,
		Blueprint: bp.Name,
		Seed:      seed,
		Entries:   mapper.NormalizeAll(entries),
	}, nil
}

// Compose builds a selection from explicitly chosen questions of a subject, in the given order.
// Alternatives stored with the questions are kept.
func (s *Service) Compose(ctx context.Context, subjectID int64, ids []int64) (*Selection, error) {
	subj, err := s.subject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoQuestions
	}
	records, err := s.repo.QuestionsByIDs(ctx, subj.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	byID := make(map[int64]model.Question, len(records))
	for _, q := range records {
		byID[q.ID] = q
	}

	ordered := make([]model.Question, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownQuestion, id)
		}
		ordered = append(ordered, q)
	}
	return &Selection{Subject: *subj, Entries: mapper.Map(ordered)}, nil
}

// Bank returns every question of a subject.
func (s *Service) Bank(ctx context.Context, subjectID int64) (*model.Subject, []model.Question, error) {
	subj, err := s.subject(ctx, subjectID)
	if err != nil {
		return nil, nil, err
	}
	qs, err := s.repo.QuestionsForSubject(ctx, subj.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch questions: %w", err)
	}
	return subj, qs, nil
}

// Render assembles sel under meta. Subject code and name default to the selection's subject.
func (s *Service) Render(sel *Selection, meta model.PaperMeta, opts ...assemble.Option) *document.Document {
	if meta.SubjectCode == "" {
		meta.SubjectCode = sel.Subject.Code
	}
	if meta.SubjectName == "" {
		meta.SubjectName = sel.Subject.Name
	}
	return assemble.Assemble(meta, sel.Entries, opts...)
}

// Write serializes doc with the service's writer.
func (s *Service) Write(w io.Writer, doc *document.Document) error {
	if s.writer == nil {
		return errors.New("no document writer configured")
	}
	if err := s.writer.Write(w, doc); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Generate selects, renders and writes a paper in one call.
func (s *Service) Generate(ctx context.Context, w io.Writer, req Request, meta model.PaperMeta, opts ...assemble.Option) (*Selection, error) {
	if req.Test == "" && len(meta.Tests) > 0 {
		req.Test = meta.Tests[0]
	}
	sel, err := s.AutoSelect(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.Write(w, s.Render(sel, meta, opts...)); err != nil {
		return nil, err
	}
	return sel, nil
}

func (s *Service) subject(ctx context.Context, id int64) (*model.Subject, error) {
	if id <= 0 {
		return nil, ErrNoSubject
	}
	subj, err := s.repo.SubjectByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch subject: %w", err)
	}
	if subj == nil {
		return nil, fmt.Errorf("%w: subject %d not found", ErrNoSubject, id)
	}
	return subj, nil
}

// IsPrecondition reports whether err is a precondition failure raised before selection.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNoSubject) || errors.Is(err, ErrEmptyPool) ||
		errors.Is(err, ErrNoQuestions) || errors.Is(err, ErrUnknownQuestion) ||
		errors.Is(err, ErrUnmappedTest) || errors.Is(err, blueprint.ErrUnknown)
}
