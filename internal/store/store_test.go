package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/paper"
)

// Store is the repository the paper service reads from.
var _ paper.Repository = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestSubject(t *testing.T, s *Store, code string) int64 {
	t.Helper()
	id, err := s.CreateSubject(context.Background(), code, "Subject "+code)
	if err != nil {
		t.Fatalf("createTestSubject: %v", err)
	}
	return id
}

func insertTestQuestion(t *testing.T, s *Store, subjectID int64, part model.Part, marks int, co model.COLevel) int64 {
	t.Helper()
	id, err := s.InsertQuestion(context.Background(), model.Question{
		SubjectID: subjectID,
		Content:   "question",
		Marks:     marks,
		KLevel:    "K2",
		Part:      part,
		COLevel:   co,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func TestSubjectCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	list, err := s.ListSubjects(ctx)
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no subjects, got %d", len(list))
	}

	id := createTestSubject(t, s, "CS3351")
	createTestSubject(t, s, "AB1000")

	subj, err := s.SubjectByID(ctx, id)
	if err != nil {
		t.Fatalf("SubjectByID: %v", err)
	}
	if subj == nil || subj.Code != "CS3351" || subj.Name != "Subject CS3351" {
		t.Errorf("unexpected subject: %+v", subj)
	}

	byCode, err := s.SubjectByCode(ctx, " CS3351 ")
	if err != nil || byCode == nil || byCode.ID != id {
		t.Errorf("SubjectByCode: %+v, %v", byCode, err)
	}

	missing, err := s.SubjectByID(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for a missing subject, got %+v, %v", missing, err)
	}

	if _, err := s.CreateSubject(ctx, "CS3351", "Duplicate"); err == nil {
		t.Error("expected error for duplicate subject code")
	}

	list, _ = s.ListSubjects(ctx)
	if len(list) != 2 || list[0].Code != "AB1000" || list[1].Code != "CS3351" {
		t.Errorf("expected subjects ordered by code, got %+v", list)
	}
}

func TestEnsureSubject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.EnsureSubject(ctx, "MA3354", "")
	if err != nil {
		t.Fatalf("EnsureSubject: %v", err)
	}
	if created.Name != "MA3354" {
		t.Errorf("expected name to default to code, got %q", created.Name)
	}
	again, err := s.EnsureSubject(ctx, "MA3354", "Other name")
	if err != nil {
		t.Fatalf("EnsureSubject: %v", err)
	}
	if again.ID != created.ID || again.Name != "MA3354" {
		t.Errorf("expected existing subject, got %+v", again)
	}
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")

	count, err := s.QuestionCount(ctx, subj)
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	in := model.Question{
		SubjectID:    subj,
		Content:      `Solve \(x^{2}\)`,
		Marks:        12,
		KLevel:       "K3",
		Part:         model.PartB,
		COLevel:      "CO2",
		HasFormula:   true,
		HasOr:        true,
		OrContent:    "Alternative",
		OrMarks:      12,
		OrKLevel:     "K4",
		OrPart:       model.PartB,
		OrCOLevel:    "CO3",
		OrHasFormula: false,
		CreatedBy:    7,
	}
	id, err := s.InsertQuestion(ctx, in)
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	got, err := s.GetQuestion(ctx, id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	in.ID = id
	if diff := cmp.Diff(in, got, cmpopts.IgnoreFields(model.Question{}, "CreatedAt")); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	if got.CreatedAt.IsZero() || time.Since(got.CreatedAt) > time.Minute {
		t.Errorf("unexpected created_at %v", got.CreatedAt)
	}

	if _, err := s.GetQuestion(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Delete is scoped to the subject.
	other := createTestSubject(t, s, "MA3354")
	if err := s.DeleteQuestion(ctx, other, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting through another subject, got %v", err)
	}
	if err := s.DeleteQuestion(ctx, subj, id); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	count, _ = s.QuestionCount(ctx, subj)
	if count != 0 {
		t.Errorf("expected 0 questions after delete, got %d", count)
	}
}

func TestQuestionConstraints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")

	tests := []struct {
		name string
		q    model.Question
	}{
		{"zero marks", model.Question{SubjectID: subj, Content: "q", Marks: 0, KLevel: "K1", Part: "A", COLevel: "CO1"}},
		{"bad k level", model.Question{SubjectID: subj, Content: "q", Marks: 2, KLevel: "K7", Part: "A", COLevel: "CO1"}},
		{"bad co level", model.Question{SubjectID: subj, Content: "q", Marks: 2, KLevel: "K1", Part: "A", COLevel: "CO6"}},
		{"unknown subject", model.Question{SubjectID: 999, Content: "q", Marks: 2, KLevel: "K1", Part: "A", COLevel: "CO1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.InsertQuestion(ctx, tt.q); err == nil {
				t.Error("expected constraint error")
			}
		})
	}
}

func TestInsertQuestionsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")

	good := model.Question{SubjectID: subj, Content: "q", Marks: 2, KLevel: "K1", Part: "A", COLevel: "CO1"}
	bad := good
	bad.Marks = -1

	if err := s.InsertQuestions(ctx, []model.Question{good, bad}); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := s.QuestionCount(ctx, subj); n != 0 {
		t.Errorf("expected rollback, found %d questions", n)
	}

	if err := s.InsertQuestions(ctx, []model.Question{good, good, good}); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}
	if n, _ := s.QuestionCount(ctx, subj); n != 3 {
		t.Errorf("expected 3 questions, got %d", n)
	}
}

func TestCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")
	other := createTestSubject(t, s, "MA3354")

	insertTestQuestion(t, s, subj, model.PartA, 2, "CO1")
	insertTestQuestion(t, s, subj, model.PartB, 12, "CO1")
	insertTestQuestion(t, s, subj, model.PartA, 2, "CO2")
	insertTestQuestion(t, s, other, model.PartA, 2, "CO1")

	tests := []struct {
		name    string
		subject int64
		co      model.COLevel
		want    int
	}{
		{"scoped", subj, "CO1", 2},
		{"other outcome", subj, "CO2", 1},
		{"empty outcome", subj, "CO5", 0},
		{"unscoped", subj, "", 3},
		{"other subject", other, "", 1},
		{"unknown subject", 999, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Candidates(ctx, tt.subject, tt.co)
			if err != nil {
				t.Fatalf("Candidates: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d candidates, got %d", tt.want, len(got))
			}
			for _, q := range got {
				if q.SubjectID != tt.subject || (tt.co != "" && q.COLevel != tt.co) {
					t.Errorf("candidate outside filter: %+v", q)
				}
			}
		})
	}
}

func TestQuestionsByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")
	other := createTestSubject(t, s, "MA3354")

	a := insertTestQuestion(t, s, subj, model.PartA, 2, "CO1")
	b := insertTestQuestion(t, s, subj, model.PartB, 12, "CO1")
	foreign := insertTestQuestion(t, s, other, model.PartA, 2, "CO1")

	got, err := s.QuestionsByIDs(ctx, subj, []int64{b, a, foreign, 9999})
	if err != nil {
		t.Fatalf("QuestionsByIDs: %v", err)
	}
	var ids []int64
	for _, q := range got {
		ids = append(ids, q.ID)
	}
	if diff := cmp.Diff([]int64{a, b}, ids); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}

	none, err := s.QuestionsByIDs(ctx, subj, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("expected nothing for no ids, got %v, %v", none, err)
	}
}

func TestUpdateSubject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestSubject(t, s, "CS3351")
	createTestSubject(t, s, "MA3354")

	if err := s.UpdateSubject(ctx, id, " CS3352 ", "Digital Systems"); err != nil {
		t.Fatalf("UpdateSubject: %v", err)
	}
	subj, _ := s.SubjectByID(ctx, id)
	if subj == nil || subj.Code != "CS3352" || subj.Name != "Digital Systems" {
		t.Errorf("unexpected subject after update: %+v", subj)
	}
	if err := s.UpdateSubject(ctx, id, "MA3354", "Clash"); err == nil {
		t.Error("expected error renaming onto an existing code")
	}
	if err := s.UpdateSubject(ctx, 9999, "XX0000", "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSubject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")
	other := createTestSubject(t, s, "MA3354")
	insertTestQuestion(t, s, subj, model.PartA, 2, "CO1")
	kept := insertTestQuestion(t, s, other, model.PartA, 2, "CO1")
	if err := s.SetImportedFileHash(ctx, subj, "bank.xlsx", "abc123"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSubject(ctx, subj); err != nil {
		t.Fatalf("DeleteSubject: %v", err)
	}
	if got, _ := s.SubjectByID(ctx, subj); got != nil {
		t.Errorf("subject still present: %+v", got)
	}
	if n, _ := s.QuestionCount(ctx, subj); n != 0 {
		t.Errorf("expected questions removed with subject, got %d", n)
	}
	if hash, _ := s.GetImportedFileHash(ctx, subj, "bank.xlsx"); hash != "" {
		t.Errorf("expected import record removed with subject, got %q", hash)
	}
	if _, err := s.GetQuestion(ctx, kept); err != nil {
		t.Errorf("other subject's question should survive: %v", err)
	}
	if err := s.DeleteSubject(ctx, subj); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestUpdateQuestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")
	id := insertTestQuestion(t, s, subj, model.PartA, 2, "CO1")
	before, _ := s.GetQuestion(ctx, id)

	edit := model.Question{
		ID:           id,
		SubjectID:    subj,
		Content:      "Design a counter.",
		Marks:        16,
		KLevel:       "K6",
		Part:         model.PartC,
		COLevel:      "CO2",
		HasOr:        true,
		OrContent:    `Derive \(x^{2}\)`,
		OrMarks:      16,
		OrKLevel:     "K5",
		OrHasFormula: true,
	}
	if err := s.UpdateQuestion(ctx, edit); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	got, err := s.GetQuestion(ctx, id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	edit.CreatedAt = before.CreatedAt
	if diff := cmp.Diff(edit, got); diff != "" {
		t.Errorf("update (-want +got):\n%s", diff)
	}

	// Update is scoped to the subject.
	other := createTestSubject(t, s, "MA3354")
	edit.SubjectID = other
	if err := s.UpdateQuestion(ctx, edit); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound updating through another subject, got %v", err)
	}
	edit.SubjectID, edit.Marks = subj, 0
	if err := s.UpdateQuestion(ctx, edit); err == nil {
		t.Error("expected the marks check to reject zero marks")
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")
	other := createTestSubject(t, s, "MA3354")

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash(ctx, subj, "bank.xlsx")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash(ctx, subj, "bank.xlsx", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash(ctx, subj, "bank.xlsx")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Hashes are per subject.
	hash, _ = s.GetImportedFileHash(ctx, other, "bank.xlsx")
	if hash != "" {
		t.Errorf("expected no hash for another subject, got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash(ctx, subj, "bank.xlsx", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash(ctx, subj, "bank.xlsx")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestInstitutionSettings(t *testing.T) {
	s := newTestStore(t)

	inst, err := s.GetInstitution()
	if err != nil {
		t.Fatalf("GetInstitution: %v", err)
	}
	if inst != (model.Institution{}) {
		t.Errorf("expected empty institution, got %+v", inst)
	}

	want := model.Institution{Name: "GOVT COLLEGE", Status: "(Affiliated)", Address: "MADURAI"}
	if err := s.SetInstitution(want); err != nil {
		t.Fatalf("SetInstitution: %v", err)
	}
	if err := s.SetInstitution(model.Institution{Name: want.Name, Status: want.Status, Address: want.Address}); err != nil {
		t.Fatalf("SetInstitution again: %v", err)
	}
	got, _ := s.GetInstitution()
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestExportBank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subj := createTestSubject(t, s, "CS3351")

	if _, err := s.InsertQuestion(ctx, model.Question{
		SubjectID: subj, Content: "main", Marks: 16, KLevel: "K5", Part: model.PartC, COLevel: "CO4",
		HasOr: true, OrContent: "alt", OrMarks: 16, OrKLevel: "K6", OrPart: model.PartC, OrCOLevel: "CO4",
	}); err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	insertTestQuestion(t, s, subj, model.PartA, 2, "CO1")

	exp, err := s.ExportBank(ctx, subj)
	if err != nil {
		t.Fatalf("ExportBank: %v", err)
	}
	if exp.Subject.Code != "CS3351" || exp.Count != 2 || len(exp.Questions) != 2 {
		t.Fatalf("unexpected export header: %+v", exp)
	}
	// Ordered by part.
	if exp.Questions[0].Part != "A" || exp.Questions[1].Part != "C" {
		t.Errorf("unexpected order: %+v", exp.Questions)
	}
	if q := exp.Questions[1]; !q.HasOr || q.OrContent != "alt" || q.OrKLevel != "K6" {
		t.Errorf("alternative not exported: %+v", q)
	}

	if _, err := s.ExportBank(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	if n, _ := s.UserCount(); n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}
	if _, err := s.CreateUser(model.User{Username: "x", PasswordHash: "h", Role: "student"}); err == nil {
		t.Error("expected error for unknown role")
	}

	tid, err := s.CreateUser(model.User{Username: "priya", DisplayName: "Priya", PasswordHash: "h1", Role: model.UserRoleTeacher, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	aid, err := s.CreateUser(model.User{Username: "root", PasswordHash: "h2", Role: model.UserRoleAdmin, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(model.User{Username: "priya", PasswordHash: "h", Role: model.UserRoleTeacher}); err == nil {
		t.Error("expected error for duplicate username")
	}

	u, err := s.GetUserByUsername("priya")
	if err != nil || u == nil || u.ID != tid || !u.Active || u.Role != model.UserRoleTeacher {
		t.Errorf("GetUserByUsername: %+v, %v", u, err)
	}
	if u, err := s.GetUserByUsername("nobody"); err != nil || u != nil {
		t.Errorf("expected nil, nil for unknown user, got %+v, %v", u, err)
	}

	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].ID != aid {
		t.Errorf("expected admin listed first, got %+v", users)
	}

	if err := s.SetPassword(tid, "h3"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	u, _ = s.GetUserByID(tid)
	if u.PasswordHash != "h3" {
		t.Errorf("expected new hash, got %q", u.PasswordHash)
	}
}

func TestSetUserActiveEndsSessions(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateUser(model.User{Username: "priya", PasswordHash: "h", Role: model.UserRoleTeacher, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}

	if err := s.SetUserActive(id, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	u, _ := s.GetUserByID(id)
	if u.Active {
		t.Error("expected user to be inactive")
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("expected session to end with deactivation")
	}

	if err := s.SetUserActive(id, true); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if err := s.SetUserActive(9999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateUser(model.User{Username: "priya", PasswordHash: "h", Role: model.UserRoleTeacher, Active: true})

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}
	sess, err := s.GetAuthSession(token)
	if err != nil || sess == nil || sess.UserID != id {
		t.Fatalf("GetAuthSession: %+v, %v", sess, err)
	}

	// Sessions in the second half of their life are extended.
	soon := time.Now().Add(AuthSessionTTL / 4)
	if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`, soon, token); err != nil {
		t.Fatalf("update expiry: %v", err)
	}
	sess, _ = s.GetAuthSession(token)
	if sess == nil || time.Until(sess.ExpiresAt) < AuthSessionTTL/2 {
		t.Errorf("expected extended session, got %+v", sess)
	}

	// Expired sessions are gone.
	past := time.Now().Add(-time.Minute)
	if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`, past, token); err != nil {
		t.Fatalf("update expiry: %v", err)
	}
	if sess, err := s.GetAuthSession(token); err != nil || sess != nil {
		t.Errorf("expected nil for expired session, got %+v, %v", sess, err)
	}

	other, _ := s.CreateAuthSession(id)
	if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`, past, other); err != nil {
		t.Fatalf("update expiry: %v", err)
	}
	live, _ := s.CreateAuthSession(id)
	n, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired session removed, got %d", n)
	}
	if sess, _ := s.GetAuthSession(live); sess == nil {
		t.Error("live session should survive cleanup")
	}

	if err := s.DeleteAuthSession(live); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if sess, _ := s.GetAuthSession(live); sess != nil {
		t.Error("expected deleted session to be gone")
	}
}
