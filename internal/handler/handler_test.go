package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/qpaper/internal/docx"
	appI18n "github.com/pavelanni/qpaper/internal/i18n"
	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/paper"
	"github.com/pavelanni/qpaper/internal/store"
)

const testCSRF = "test-csrf-token"

type testEnv struct {
	t         *testing.T
	store     *store.Store
	router    http.Handler
	session   string
	adminID   int64
	subjectID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h, err := New(s, paper.NewService(s, nil, docx.Writer{}), model.ServeConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	r.Use(appI18n.Middleware)
	r.Use(h.BasePathMiddleware)
	h.Routes(r)

	e := &testEnv{t: t, store: s, router: r}
	e.adminID = e.createUser("admin", "secret", model.UserRoleAdmin)
	e.session = e.login(e.adminID)
	e.subjectID = e.seedSubject("CS3351", model.COLevel("CO1"), 5, 4, 2)
	return e
}

func (e *testEnv) createUser(name, password string, role model.UserRole) int64 {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		e.t.Fatalf("hash: %v", err)
	}
	id, err := e.store.CreateUser(model.User{
		Username: name, DisplayName: name, PasswordHash: string(hash), Role: role, Active: true,
	})
	if err != nil {
		e.t.Fatalf("CreateUser: %v", err)
	}
	return id
}

func (e *testEnv) login(userID int64) string {
	e.t.Helper()
	token, err := e.store.CreateAuthSession(userID)
	if err != nil {
		e.t.Fatalf("CreateAuthSession: %v", err)
	}
	return token
}

// seedSubject stores nA 2-mark Part A, nB 12-mark Part B and nC 16-mark Part C questions tagged co.
func (e *testEnv) seedSubject(code string, co model.COLevel, nA, nB, nC int) int64 {
	e.t.Helper()
	ctx := context.Background()
	id, err := e.store.CreateSubject(ctx, code, "Digital Principles")
	if err != nil {
		e.t.Fatalf("CreateSubject: %v", err)
	}
	var qs []model.Question
	add := func(n int, part model.Part, marks int) {
		for i := 0; i < n; i++ {
			qs = append(qs, model.Question{
				SubjectID: id,
				Content:   fmt.Sprintf("Part %s question %d", part, i+1),
				Marks:     marks,
				KLevel:    "K2",
				Part:      part,
				COLevel:   co,
			})
		}
	}
	add(nA, model.PartA, 2)
	add(nB, model.PartB, 12)
	add(nC, model.PartC, 16)
	if err := e.store.InsertQuestions(ctx, qs); err != nil {
		e.t.Fatalf("InsertQuestions: %v", err)
	}
	return id
}

func (e *testEnv) send(req *http.Request, session string) *httptest.ResponseRecorder {
	e.t.Helper()
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testCSRF})
	if session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.send(httptest.NewRequest(http.MethodGet, path, nil), e.session)
}

func (e *testEnv) postAs(session, path string, form url.Values) *httptest.ResponseRecorder {
	e.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRF)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.send(req, session)
}

func (e *testEnv) post(path string, form url.Values) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.postAs(e.session, path, form)
}

func (e *testEnv) postJSON(path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		e.t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeaderName, testCSRF)
	return e.send(req, e.session)
}

func (e *testEnv) upload(path, filename, content string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("csrf_token", testCSRF)
	fw, err := mw.CreateFormFile("questions_file", filename)
	if err != nil {
		e.t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(req, e.session)
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body:\n%s", rec.Code, want, rec.Body.String())
	}
}

func assertContains(t *testing.T, rec *httptest.ResponseRecorder, wants ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, w := range wants {
		if !strings.Contains(body, w) {
			t.Errorf("body does not contain %q", w)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.send(httptest.NewRequest(http.MethodGet, "/", nil), "")
	assertStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}

	rec = e.send(httptest.NewRequest(http.MethodGet, "/", nil), "bogus")
	assertStatus(t, rec, http.StatusSeeOther)

	req := httptest.NewRequest(http.MethodPost, "/api/papers/select", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeaderName, testCSRF)
	rec = e.send(req, "")
	assertStatus(t, rec, http.StatusUnauthorized)
}

func TestCSRF(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"mismatch", "other-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"code": {"MA3151"}, "name": {"Matrices"}}
			if tt.token != "" {
				form.Set("csrf_token", tt.token)
			}
			req := httptest.NewRequest(http.MethodPost, "/subjects", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			assertStatus(t, e.send(req, e.session), http.StatusForbidden)
		})
	}

	rec := e.send(httptest.NewRequest(http.MethodGet, "/login", nil), "")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, `name="csrf_token" value="`+testCSRF+`"`)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postAs("", "/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	assertStatus(t, rec, http.StatusUnauthorized)
	assertContains(t, rec, "Invalid username or password.")

	rec = e.postAs("", "/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	assertStatus(t, rec, http.StatusSeeOther)
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("no session cookie set")
	}
	assertStatus(t, e.send(httptest.NewRequest(http.MethodGet, "/", nil), token), http.StatusOK)

	rec = e.postAs(token, "/logout", nil)
	assertStatus(t, rec, http.StatusSeeOther)
	assertStatus(t, e.send(httptest.NewRequest(http.MethodGet, "/", nil), token), http.StatusSeeOther)
}

func TestIndex(t *testing.T) {
	e := newTestEnv(t)

	rec := e.get("/")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "Question Paper Generator", "CS3351", "11 questions available.", "unit-test", "Unit Test 5")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "hi")
	rec = e.send(req, e.session)
	assertContains(t, rec, "प्रश्न पत्र जनरेटर")
}

func TestCreateSubject(t *testing.T) {
	e := newTestEnv(t)

	rec := e.post("/subjects", url.Values{"code": {"ma3151"}, "name": {"Matrices and Calculus"}})
	assertStatus(t, rec, http.StatusSeeOther)
	subj, err := e.store.SubjectByCode(context.Background(), "MA3151")
	if err != nil || subj == nil {
		t.Fatalf("subject not stored: %v", err)
	}
	if want := fmt.Sprintf("/subjects/%d", subj.ID); rec.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), want)
	}

	rec = e.post("/subjects", url.Values{"code": {"CS3351"}, "name": {"Again"}})
	assertStatus(t, rec, http.StatusBadRequest)
	assertContains(t, rec, "Subject CS3351 already exists.")

	assertStatus(t, e.post("/subjects", url.Values{"code": {"X1"}}), http.StatusBadRequest)
}

func TestSubjectPage(t *testing.T) {
	e := newTestEnv(t)

	rec := e.get(fmt.Sprintf("/subjects/%d", e.subjectID))
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "Digital Principles", "<p>Part B question 3</p>", `name="question_id"`)

	assertStatus(t, e.get("/subjects/999"), http.StatusNotFound)
	assertStatus(t, e.get("/subjects/abc"), http.StatusBadRequest)
}

func TestPreviewAndDownload(t *testing.T) {
	e := newTestEnv(t)
	form := func() url.Values {
		return url.Values{
			"subject_id":  {fmt.Sprint(e.subjectID)},
			"tests":       {"Unit Test 1"},
			"department":  {"CSE"},
			"semester":    {"3"},
			"duration":    {"1.30"},
			"regulations": {"2021"},
			"seed":        {"42"},
		}
	}

	rec := e.post("/papers/preview", form())
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec,
		"UT1CS3351",
		"THIRD SEMESTER",
		"DEPARTMENT OF CSE",
		"Max. Marks: 50",
		`name="seed" value="42"`,
		"Draw 42.",
	)

	rec = e.post("/papers/download", form())
	assertStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != docx.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "CS3351_question_paper.docx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("download is not a zip package")
	}
}

func TestPreviewFreshSeed(t *testing.T) {
	e := newTestEnv(t)

	rec := e.post("/papers/preview", url.Values{"subject_id": {fmt.Sprint(e.subjectID)}, "tests": {"Unit Test 1"}})
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, `name="seed" value="`)
}

func TestComposeFromBank(t *testing.T) {
	e := newTestEnv(t)
	qs, err := e.store.QuestionsForSubject(context.Background(), e.subjectID)
	if err != nil {
		t.Fatal(err)
	}

	form := url.Values{
		"subject_id":  {fmt.Sprint(e.subjectID)},
		"tests":       {"Model Exam"},
		"question_id": {fmt.Sprint(qs[0].ID), fmt.Sprint(qs[len(qs)-1].ID)},
	}
	rec := e.post("/papers/preview", form)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, qs[0].Content, qs[len(qs)-1].Content, "Max. Marks: 18")
}

func TestPaperErrors(t *testing.T) {
	e := newTestEnv(t)
	short := e.seedSubject("CS3352", model.COLevel("CO1"), 5, 0, 2)

	tests := []struct {
		name   string
		form   url.Values
		status int
		msg    string
	}{
		{
			name:   "no subject",
			form:   url.Values{"tests": {"Unit Test 1"}},
			status: http.StatusBadRequest,
			msg:    "Please select a subject first.",
		},
		{
			name:   "missing subject",
			form:   url.Values{"subject_id": {"999"}, "tests": {"Unit Test 1"}},
			status: http.StatusBadRequest,
			msg:    "Please select a subject first.",
		},
		{
			name:   "empty scope",
			form:   url.Values{"subject_id": {fmt.Sprint(e.subjectID)}, "tests": {"Unit Test 2"}},
			status: http.StatusBadRequest,
			msg:    "No questions available for this subject.",
		},
		{
			name:   "shortage",
			form:   url.Values{"subject_id": {fmt.Sprint(short)}, "tests": {"Unit Test 1"}},
			status: http.StatusUnprocessableEntity,
			msg:    "Not enough 12-mark questions for Part B: need 4, have 0.",
		},
		{
			name:   "unmapped test",
			form:   url.Values{"subject_id": {fmt.Sprint(e.subjectID)}, "tests": {"Model Exam"}},
			status: http.StatusBadRequest,
			msg:    "Could not map the test to a course outcome.",
		},
		{
			name:   "unknown blueprint",
			form:   url.Values{"subject_id": {fmt.Sprint(e.subjectID)}, "blueprint": {"final"}},
			status: http.StatusBadRequest,
			msg:    "Unknown blueprint.",
		},
		{
			name:   "bad seed",
			form:   url.Values{"subject_id": {fmt.Sprint(e.subjectID)}, "seed": {"-1"}},
			status: http.StatusBadRequest,
			msg:    "Invalid request.",
		},
		{
			name:   "foreign question",
			form:   url.Values{"subject_id": {fmt.Sprint(short)}, "question_id": {"1"}},
			status: http.StatusBadRequest,
			msg:    "One of the chosen questions is not in this bank.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/papers/preview", "/papers/download"} {
				rec := e.post(path, tt.form)
				assertStatus(t, rec, tt.status)
				assertContains(t, rec, tt.msg)
			}
		})
	}
}

func TestAPISelect(t *testing.T) {
	e := newTestEnv(t)

	decode := func(rec *httptest.ResponseRecorder) paper.Selection {
		t.Helper()
		assertStatus(t, rec, http.StatusOK)
		var sel paper.Selection
		if err := json.Unmarshal(rec.Body.Bytes(), &sel); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return sel
	}
	sources := func(sel paper.Selection) []int64 {
		var ids []int64
		for _, en := range sel.Entries {
			ids = append(ids, en.SourceID)
			if en.Alt != nil {
				ids = append(ids, en.Alt.SourceID)
			}
		}
		return ids
	}

	first := decode(e.postJSON("/api/papers/select", map[string]any{"subject_id": e.subjectID, "test": "Unit Test 1"}))
	if len(first.Entries) != 8 || first.Seed == 0 || first.Scope != "CO1" || first.Blueprint != "unit-test" {
		t.Fatalf("unexpected selection: %+v", first)
	}
	again := decode(e.postJSON("/api/papers/select", map[string]any{
		"subject_id": e.subjectID, "test": "unit test 1", "seed": first.Seed,
	}))
	if fmt.Sprint(sources(first)) != fmt.Sprint(sources(again)) {
		t.Errorf("same seed drew %v then %v", sources(first), sources(again))
	}

	picked := decode(e.postJSON("/api/papers/select", map[string]any{
		"subject_id": e.subjectID, "question_ids": []int64{sources(first)[0]},
	}))
	if len(picked.Entries) != 1 || picked.Entries[0].SourceID != sources(first)[0] {
		t.Errorf("compose returned %+v", picked.Entries)
	}

	rec := e.postJSON("/api/papers/select", map[string]any{"subject_id": e.subjectID, "test": "Unit Test 4"})
	assertStatus(t, rec, http.StatusBadRequest)
	assertContains(t, rec, `"error"`, "No questions available")

	rec = e.postJSON("/api/papers/select", map[string]any{"subject": 1})
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestImport(t *testing.T) {
	e := newTestEnv(t)
	path := fmt.Sprintf("/subjects/%d/import", e.subjectID)
	bank := `[{"content":"What is a latch?","marks":2,"k_level":"K1","co_level":"CO2","part":"A"},
		{"content":"Design a counter.","marks":16,"k_level":"K6","co_level":"CO2","part":"C"}]`

	rec := e.upload(path, "bank.json", bank)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "2 questions imported.", "What is a latch?")
	if n, _ := e.store.QuestionCount(context.Background(), e.subjectID); n != 13 {
		t.Errorf("QuestionCount = %d, want 13", n)
	}

	rec = e.upload(path, "bank.json", bank)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "This file was already imported for this subject.")
	if n, _ := e.store.QuestionCount(context.Background(), e.subjectID); n != 13 {
		t.Errorf("duplicate import changed the bank: %d questions", n)
	}

	rec = e.upload(path, "broken.json", `[{"content":"","marks":2,"k_level":"K9","co_level":"CO1"}]`)
	assertStatus(t, rec, http.StatusBadRequest)
	assertContains(t, rec, "Row 1: Question content cannot be empty", "Row 1: K-Level &#34;K9&#34; must be K1 to K6")

	rec = e.upload(path, "bank.csv", "a,b")
	assertStatus(t, rec, http.StatusBadRequest)
	assertContains(t, rec, "unsupported file type")
}

func TestDeleteQuestion(t *testing.T) {
	e := newTestEnv(t)
	qs, err := e.store.QuestionsForSubject(context.Background(), e.subjectID)
	if err != nil {
		t.Fatal(err)
	}
	path := fmt.Sprintf("/subjects/%d/questions/%d/delete", e.subjectID, qs[0].ID)

	assertStatus(t, e.post(path, nil), http.StatusSeeOther)
	assertStatus(t, e.post(path, nil), http.StatusNotFound)
}

func questionValues(content, marks, k, part, co string) url.Values {
	return url.Values{"content": {content}, "marks": {marks}, "k_level": {k}, "part": {part}, "co_level": {co}}
}

func findQuestion(t *testing.T, s *store.Store, subjectID int64, content string) (model.Question, bool) {
	t.Helper()
	qs, err := s.QuestionsForSubject(context.Background(), subjectID)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range qs {
		if q.Content == content {
			return q, true
		}
	}
	return model.Question{}, false
}

func TestCreateQuestion(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	path := fmt.Sprintf("/subjects/%d/questions", e.subjectID)

	rec := e.post(path, questionValues("  Simplify `x^2`.  ", "2", "k1", "a", "co2"))
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "Question saved.")
	if n, _ := e.store.QuestionCount(ctx, e.subjectID); n != 12 {
		t.Errorf("QuestionCount = %d, want 12", n)
	}
	q, ok := findQuestion(t, e.store, e.subjectID, `Simplify \(x^{2}\).`)
	if !ok {
		t.Fatal("created question not stored with its formula converted")
	}
	if !q.HasFormula || q.KLevel != "K1" || q.Part != model.PartA || q.COLevel != "CO2" || q.CreatedBy != e.adminID {
		t.Errorf("unexpected question: %+v", q)
	}

	withOr := questionValues("Define a flip-flop.", "2", "K1", "A", "CO1")
	withOr.Set("has_or", "1")
	withOr.Set("or_content", "Define a latch.")
	assertStatus(t, e.post(path, withOr), http.StatusOK)
	q, ok = findQuestion(t, e.store, e.subjectID, "Define a flip-flop.")
	if !ok || !q.HasOr || q.OrContent != "Define a latch." {
		t.Errorf("alternative not stored: %+v", q)
	}

	tests := []struct {
		name string
		form url.Values
		msgs []string
	}{
		{
			name: "invalid fields",
			form: questionValues("Kept text", "x", "K9", "A", "CO1"),
			msgs: []string{"Mark &#34;0&#34; must be a positive number", "K-Level &#34;K9&#34; must be K1 to K6", "Kept text"},
		},
		{
			name: "empty content",
			form: questionValues("   ", "2", "K1", "A", "CO1"),
			msgs: []string{"Question content cannot be empty"},
		},
		{
			name: "empty alternative",
			form: url.Values{
				"content": {"Main only"}, "marks": {"2"}, "k_level": {"K1"}, "part": {"A"}, "co_level": {"CO1"},
				"has_or": {"1"},
			},
			msgs: []string{"OR question content cannot be empty", "Main only"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.post(path, tt.form)
			assertStatus(t, rec, http.StatusBadRequest)
			assertContains(t, rec, tt.msgs...)
			if n, _ := e.store.QuestionCount(ctx, e.subjectID); n != 13 {
				t.Errorf("invalid question changed the bank: %d questions", n)
			}
		})
	}
}

func TestEditQuestion(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	q, ok := findQuestion(t, e.store, e.subjectID, "Part A question 1")
	if !ok {
		t.Fatal("seeded question missing")
	}
	path := fmt.Sprintf("/subjects/%d/questions/%d/edit", e.subjectID, q.ID)

	rec := e.get(path)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "Edit question", "Part A question 1", fmt.Sprintf(`action="%s"`, path))

	form := questionValues("Reworded question", "2", "K3", "A", "CO1")
	form.Set("has_or", "1")
	form.Set("or_content", "Alternative wording")
	form.Set("or_k_level", "K2")
	rec = e.post(path, form)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "Question saved.", "Reworded question")
	got, err := e.store.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "Reworded question" || got.KLevel != "K3" || !got.HasOr ||
		got.OrContent != "Alternative wording" || got.OrKLevel != "K2" {
		t.Errorf("question not updated: %+v", got)
	}

	rec = e.post(path, questionValues("", "2", "K3", "A", "CO1"))
	assertStatus(t, rec, http.StatusBadRequest)
	assertContains(t, rec, "Question content cannot be empty")
	if again, _ := e.store.GetQuestion(ctx, q.ID); again.Content != "Reworded question" {
		t.Errorf("invalid edit changed the question: %q", again.Content)
	}

	other := e.seedSubject("CS3352", model.COLevel("CO2"), 1, 0, 0)
	foreign := fmt.Sprintf("/subjects/%d/questions/%d/edit", other, q.ID)
	assertStatus(t, e.get(foreign), http.StatusNotFound)
	assertStatus(t, e.post(foreign, form), http.StatusNotFound)
	assertStatus(t, e.get(fmt.Sprintf("/subjects/%d/questions/999/edit", e.subjectID)), http.StatusNotFound)
}

func TestUpdateSubject(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedSubject("MA3151", model.COLevel("CO1"), 1, 0, 0)
	path := fmt.Sprintf("/subjects/%d/edit", e.subjectID)

	rec := e.post(path, url.Values{"code": {" cs3353 "}, "name": {"Data Structures"}})
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "Subject saved.", "CS3353")
	subj, err := e.store.SubjectByID(ctx, e.subjectID)
	if err != nil || subj == nil {
		t.Fatalf("SubjectByID: %v", err)
	}
	if subj.Code != "CS3353" || subj.Name != "Data Structures" {
		t.Errorf("subject = %+v", subj)
	}

	assertStatus(t, e.post(path, url.Values{"code": {"CS3353"}, "name": {"Data Structures I"}}), http.StatusOK)

	rec = e.post(path, url.Values{"code": {"MA3151"}, "name": {"Clash"}})
	assertStatus(t, rec, http.StatusBadRequest)
	assertContains(t, rec, "Subject MA3151 already exists.")

	assertStatus(t, e.post(path, url.Values{"code": {"CS3353"}}), http.StatusBadRequest)
	assertStatus(t, e.post("/subjects/999/edit", url.Values{"code": {"X"}, "name": {"Y"}}), http.StatusNotFound)
}

func TestDeleteSubject(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	path := fmt.Sprintf("/subjects/%d/delete", e.subjectID)

	rec := e.post(path, nil)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "Subject CS3351 deleted.")
	if subj, err := e.store.SubjectByID(ctx, e.subjectID); err != nil || subj != nil {
		t.Errorf("subject still stored: %+v, %v", subj, err)
	}
	if n, _ := e.store.QuestionCount(ctx, e.subjectID); n != 0 {
		t.Errorf("QuestionCount = %d after delete", n)
	}
	assertStatus(t, e.post(path, nil), http.StatusNotFound)
}

func TestExportBank(t *testing.T) {
	e := newTestEnv(t)

	rec := e.get(fmt.Sprintf("/subjects/%d/export", e.subjectID))
	assertStatus(t, rec, http.StatusOK)
	var bank model.BankExport
	if err := json.Unmarshal(rec.Body.Bytes(), &bank); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bank.Count != 11 || bank.Subject.Code != "CS3351" {
		t.Errorf("unexpected export: count %d subject %q", bank.Count, bank.Subject.Code)
	}
}

func TestAdminUsers(t *testing.T) {
	e := newTestEnv(t)
	teacherID := e.createUser("teacher", "pw", model.UserRoleTeacher)
	teacher := e.login(teacherID)

	assertStatus(t, e.send(httptest.NewRequest(http.MethodGet, "/admin/users", nil), teacher), http.StatusForbidden)

	rec := e.post("/admin/users", url.Values{"username": {"priya"}, "password": {"pw"}, "role": {"teacher"}})
	assertStatus(t, rec, http.StatusSeeOther)
	assertContains(t, e.get("/admin/users"), "priya", "Teacher")

	assertStatus(t, e.post("/admin/users", url.Values{"username": {"x"}, "password": {"pw"}, "role": {"root"}}), http.StatusBadRequest)
	assertStatus(t, e.post("/admin/users", url.Values{"username": {"y"}}), http.StatusBadRequest)

	assertStatus(t, e.post(fmt.Sprintf("/admin/users/%d/toggle", teacherID), nil), http.StatusSeeOther)
	u, err := e.store.GetUserByID(teacherID)
	if err != nil || u.Active {
		t.Fatalf("teacher should be disabled: %+v %v", u, err)
	}
	assertStatus(t, e.send(httptest.NewRequest(http.MethodGet, "/", nil), teacher), http.StatusSeeOther)

	assertStatus(t, e.post(fmt.Sprintf("/admin/users/%d/toggle", e.adminID), nil), http.StatusBadRequest)
	assertStatus(t, e.post("/admin/users/999/toggle", nil), http.StatusNotFound)
}
