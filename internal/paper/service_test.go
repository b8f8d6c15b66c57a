package paper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pavelanni/qpaper/internal/blueprint"
	"github.com/pavelanni/qpaper/internal/document"
	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/selector"
)

type fakeRepo struct {
	subjects  map[int64]model.Subject
	questions []model.Question
	err       error
	lastCO    model.COLevel
}

func (f *fakeRepo) SubjectByID(_ context.Context, id int64) (*model.Subject, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.subjects[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeRepo) Candidates(_ context.Context, subjectID int64, co model.COLevel) ([]model.Question, error) {
	f.lastCO = co
	var out []model.Question
	for _, q := range f.questions {
		if q.SubjectID == subjectID && (co == "" || q.COLevel == co) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeRepo) QuestionsForSubject(ctx context.Context, subjectID int64) ([]model.Question, error) {
	return f.Candidates(ctx, subjectID, "")
}

func (f *fakeRepo) QuestionsByIDs(_ context.Context, subjectID int64, ids []int64) ([]model.Question, error) {
	want := make(map[int64]bool)
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Question
	// Reverse order, so callers cannot rely on the repository's ordering.
	for i := len(f.questions) - 1; i >= 0; i-- {
		q := f.questions[i]
		if q.SubjectID == subjectID && want[q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

type recordingWriter struct {
	doc *document.Document
	err error
}

func (w *recordingWriter) Write(out io.Writer, doc *document.Document) error {
	w.doc = doc
	if w.err != nil {
		return w.err
	}
	_, err := io.WriteString(out, "docx")
	return err
}

func bucket(subjectID int64, co model.COLevel, part model.Part, marks, n int, startID int64) []model.Question {
	var qs []model.Question
	for i := 0; i < n; i++ {
		id := startID + int64(i)
		qs = append(qs, model.Question{
			ID:        id,
			SubjectID: subjectID,
			Content:   fmt.Sprintf("%s question %d", co, id),
			Marks:     marks,
			Part:      part,
			KLevel:    "K2",
			COLevel:   co,
		})
	}
	return qs
}

func newFakeRepo(t *testing.T) *fakeRepo {
	t.Helper()
	r := &fakeRepo{subjects: map[int64]model.Subject{
		1: {ID: 1, Code: "CS3351", Name: "DIGITAL PRINCIPLES"},
		2: {ID: 2, Code: "MA3354", Name: "DISCRETE MATHEMATICS"},
	}}
	r.questions = append(r.questions, bucket(1, "CO1", model.PartA, 2, 6, 1)...)
	r.questions = append(r.questions, bucket(1, "CO1", model.PartB, 12, 4, 20)...)
	r.questions = append(r.questions, bucket(1, "CO1", model.PartC, 16, 2, 40)...)
	r.questions = append(r.questions, bucket(1, "CO2", model.PartA, 2, 6, 101)...)
	r.questions = append(r.questions, bucket(1, "CO2", model.PartB, 12, 4, 120)...)
	r.questions = append(r.questions, bucket(1, "CO2", model.PartC, 16, 2, 140)...)
	// CO3 is short of Part C questions.
	r.questions = append(r.questions, bucket(1, "CO3", model.PartA, 2, 6, 201)...)
	r.questions = append(r.questions, bucket(1, "CO3", model.PartB, 12, 4, 220)...)
	r.questions = append(r.questions, bucket(1, "CO3", model.PartC, 16, 1, 240)...)
	return r
}

func sourceIDs(entries []model.PaperQuestion) []int64 {
	var ids []int64
	for _, e := range entries {
		ids = append(ids, e.SourceID)
		if e.Alt != nil {
			ids = append(ids, e.Alt.SourceID)
		}
	}
	return ids
}

func TestScope(t *testing.T) {
	tests := []struct {
		test string
		want model.COLevel
	}{
		{"Unit Test 1", "CO1"},
		{"UNIT TEST - 3", "CO3"},
		{"unit test 5", "CO5"},
		{"Unit Test 6", ""},
		{"MODEL EXAM", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.test, func(t *testing.T) {
			if got := Scope(tt.test); got != tt.want {
				t.Errorf("Scope(%q) = %q, want %q", tt.test, got, tt.want)
			}
		})
	}
}

func TestAutoSelectScopesToCourseOutcome(t *testing.T) {
	repo := newFakeRepo(t)
	svc := NewService(repo, nil, nil)

	sel, err := svc.AutoSelect(context.Background(), Request{SubjectID: 1, Test: "UNIT TEST - 2", Seed: 7})
	if err != nil {
		t.Fatalf("AutoSelect: %v", err)
	}
	if repo.lastCO != "CO2" {
		t.Errorf("repository asked for %q, want CO2", repo.lastCO)
	}
	if sel.Scope != "CO2" || sel.Seed != 7 || sel.Blueprint != blueprint.DefaultName {
		t.Errorf("unexpected selection header: scope=%q seed=%d blueprint=%q", sel.Scope, sel.Seed, sel.Blueprint)
	}
	if sel.Subject.Code != "CS3351" {
		t.Errorf("subject = %q", sel.Subject.Code)
	}
	if len(sel.Entries) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(sel.Entries))
	}

	seen := make(map[int64]bool)
	for _, id := range sourceIDs(sel.Entries) {
		if seen[id] {
			t.Errorf("question %d drawn twice", id)
		}
		seen[id] = true
	}
	for _, e := range sel.Entries {
		if e.COLevel != "CO2" {
			t.Errorf("entry %s has outcome %s outside scope", e.ID, e.COLevel)
		}
		if e.HasOr != (e.Alt != nil) {
			t.Errorf("entry %s: HasOr=%v but Alt=%v", e.ID, e.HasOr, e.Alt)
		}
	}
}

func TestAutoSelectUnmappedTest(t *testing.T) {
	for _, test := range []string{"MODEL EXAM", "", "Unit Test 9"} {
		repo := newFakeRepo(t)
		repo.lastCO = "untouched"
		_, err := NewService(repo, nil, nil).AutoSelect(context.Background(), Request{SubjectID: 1, Test: test, Seed: 1})
		if !errors.Is(err, ErrUnmappedTest) {
			t.Errorf("test %q: expected ErrUnmappedTest, got %v", test, err)
		}
		if !IsPrecondition(err) {
			t.Errorf("test %q: unmapped test should be a precondition failure", test)
		}
		if repo.lastCO != "untouched" {
			t.Errorf("test %q: repository was queried for %q", test, repo.lastCO)
		}
	}
}

func TestAutoSelectSeedReproduces(t *testing.T) {
	svc := NewService(newFakeRepo(t), nil, nil)
	ctx := context.Background()

	first, err := svc.AutoSelect(ctx, Request{SubjectID: 1, Test: "Unit Test 1"})
	if err != nil {
		t.Fatalf("AutoSelect: %v", err)
	}
	if first.Seed == 0 {
		t.Fatal("expected a generated seed")
	}
	again, err := svc.AutoSelect(ctx, Request{SubjectID: 1, Test: "Unit Test 1", Seed: first.Seed})
	if err != nil {
		t.Fatalf("AutoSelect: %v", err)
	}
	if diff := cmp.Diff(sourceIDs(first.Entries), sourceIDs(again.Entries)); diff != "" {
		t.Errorf("same seed drew differently (-first +again):\n%s", diff)
	}
}

func TestAutoSelectErrors(t *testing.T) {
	ctx := context.Background()
	repoErr := errors.New("database is locked")

	tests := []struct {
		name    string
		repo    func(*fakeRepo)
		req     Request
		wantErr error
	}{
		{name: "no subject", req: Request{}, wantErr: ErrNoSubject},
		{name: "missing subject", req: Request{SubjectID: 99}, wantErr: ErrNoSubject},
		{name: "empty pool", req: Request{SubjectID: 2, Test: "Unit Test 1"}, wantErr: ErrEmptyPool},
		{name: "empty scope", req: Request{SubjectID: 1, Test: "Unit Test 4"}, wantErr: ErrEmptyPool},
		{name: "unknown blueprint", req: Request{SubjectID: 1, Blueprint: "final"}, wantErr: blueprint.ErrUnknown},
		{name: "repository failure", repo: func(r *fakeRepo) { r.err = repoErr }, req: Request{SubjectID: 1, Test: "Unit Test 1"}, wantErr: repoErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(t)
			if tt.repo != nil {
				tt.repo(repo)
			}
			_, err := NewService(repo, nil, nil).AutoSelect(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAutoSelectShortage(t *testing.T) {
	svc := NewService(newFakeRepo(t), nil, nil)
	_, err := svc.AutoSelect(context.Background(), Request{SubjectID: 1, Test: "Unit Test 3", Seed: 1})

	var shortage *selector.ShortageError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected ShortageError, got %v", err)
	}
	if shortage.Part != model.PartC || shortage.Marks != 16 || shortage.Required != 2 || shortage.Available != 1 {
		t.Errorf("unexpected shortage: %+v", shortage)
	}
	if IsPrecondition(err) {
		t.Error("a shortage is not a precondition failure")
	}
}

func TestAutoSelectCustomBlueprint(t *testing.T) {
	reg := blueprint.NewRegistry()
	if err := reg.Add(blueprint.Blueprint{Name: "quiz", Slots: []blueprint.Slot{{Part: "a", Marks: 2, Count: 3}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	svc := NewService(newFakeRepo(t), reg, nil)
	sel, err := svc.AutoSelect(context.Background(), Request{SubjectID: 1, Test: "Unit Test 1", Blueprint: "quiz", Seed: 3})
	if err != nil {
		t.Fatalf("AutoSelect: %v", err)
	}
	if len(sel.Entries) != 3 || sel.Blueprint != "quiz" {
		t.Errorf("expected 3 quiz entries, got %d (%s)", len(sel.Entries), sel.Blueprint)
	}
}

func TestCompose(t *testing.T) {
	repo := newFakeRepo(t)
	repo.questions = append(repo.questions,
		model.Question{ID: 500, SubjectID: 1, Content: "paired", Marks: 12, Part: model.PartB, COLevel: "CO1",
			HasOr: true, OrContent: "the other one", OrMarks: 12, OrCOLevel: "CO2"},
		model.Question{ID: 501, SubjectID: 1, Content: "flag only", Marks: 16, Part: model.PartC, COLevel: "CO1",
			HasOr: true},
	)
	svc := NewService(repo, nil, nil)

	sel, err := svc.Compose(context.Background(), 1, []int64{501, 2, 500, 2})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if diff := cmp.Diff([]int64{501, 2, 500, 0}, sourceIDs(sel.Entries)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if sel.Entries[0].HasOr || sel.Entries[0].Alt != nil {
		t.Error("flag without alternative text must be normalized away")
	}
	if alt := sel.Entries[2].Alt; alt == nil || alt.Content != "the other one" || alt.COLevel != "CO2" {
		t.Errorf("stored alternative lost: %+v", alt)
	}
}

func TestComposeErrors(t *testing.T) {
	svc := NewService(newFakeRepo(t), nil, nil)
	ctx := context.Background()

	if _, err := svc.Compose(ctx, 0, []int64{1}); !errors.Is(err, ErrNoSubject) {
		t.Errorf("expected ErrNoSubject, got %v", err)
	}
	if _, err := svc.Compose(ctx, 1, nil); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
	_, err := svc.Compose(ctx, 1, []int64{1, 9999})
	if !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
	if !strings.Contains(err.Error(), "9999") {
		t.Errorf("error should name the question: %v", err)
	}
	if !IsPrecondition(err) {
		t.Error("unknown question is a precondition failure")
	}
}

func TestGenerate(t *testing.T) {
	w := &recordingWriter{}
	svc := NewService(newFakeRepo(t), nil, w)
	var buf bytes.Buffer

	sel, err := svc.Generate(context.Background(), &buf, Request{SubjectID: 1, Seed: 11},
		model.PaperMeta{Tests: []string{"UNIT TEST - 1"}, Duration: "1.5"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sel.Scope != "CO1" {
		t.Errorf("test from metadata should scope to CO1, got %q", sel.Scope)
	}
	if buf.String() != "docx" {
		t.Errorf("writer output = %q", buf.String())
	}
	code := w.doc.Tables()[0].Rows[0].Cells[1].Text()
	if code != "UT1CS3351" {
		t.Errorf("subject code should default from the selection, got %q", code)
	}
}

func TestWriteErrors(t *testing.T) {
	doc := &document.Document{}
	if err := NewService(newFakeRepo(t), nil, nil).Write(io.Discard, doc); err == nil {
		t.Error("expected error without a writer")
	}
	failing := &recordingWriter{err: errors.New("disk full")}
	if err := NewService(newFakeRepo(t), nil, failing).Write(io.Discard, doc); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected wrapped writer error, got %v", err)
	}
}
