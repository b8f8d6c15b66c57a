package views

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/qpaper/internal/i18n"
	"github.com/pavelanni/qpaper/internal/model"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n: %v", err)
	}
	ctx := model.ContextWithBasePath(context.Background(), "/qp")
	ctx = model.ContextWithCSRFToken(ctx, "tok")
	ctx = model.ContextWithUser(ctx, &model.User{ID: 1, DisplayName: "Asha", Role: model.UserRoleAdmin})
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return b.String()
}

func assertHTML(t *testing.T, html string, wants []string, unwanted []string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(html, w) {
			t.Errorf("page missing %s", w)
		}
	}
	for _, u := range unwanted {
		if strings.Contains(html, u) {
			t.Errorf("page should not contain %s", u)
		}
	}
}

func TestSubjectPage(t *testing.T) {
	html := renderString(t, SubjectPage(SubjectData{
		Subject: model.Subject{ID: 3, Code: "CS<1>", Name: "Logic"},
		Questions: []model.Question{{
			ID: 7, SubjectID: 3, Content: "**Define** <script>alert(1)</script>", Marks: 2,
			Part: model.PartA, KLevel: "K1", COLevel: "CO1", HasOr: true, OrContent: "Or this",
		}},
		Tests:   []string{"Unit Test 1"},
		Message: "Question saved.",
	}))

	assertHTML(t, html, []string{
		"<!DOCTYPE html>",
		"<h1>CS&lt;1&gt; · Logic</h1>",
		`<p class="flash ok">Question saved.</p>`,
		"<strong>Define</strong>",
		"<p>Or this</p>",
		`action="/qp/subjects/3/questions"`,
		`href="/qp/subjects/3/questions/7/edit"`,
		`formaction="/qp/subjects/3/questions/7/delete"`,
		`action="/qp/subjects/3/delete"`,
		`<input name="code" value="CS&lt;1&gt;" required>`,
		`name="csrf_token" value="tok"`,
		`href="/qp/admin/users"`,
		"<span>Asha</span>",
	}, []string{"<script>alert(1)</script>", "CS<1>"})
}

func TestSubjectPageEmptyBank(t *testing.T) {
	html := renderString(t, SubjectPage(SubjectData{Subject: model.Subject{ID: 3, Code: "CS3351"}}))
	assertHTML(t, html, []string{"No questions in this bank yet."}, []string{`name="question_id"`})
}

func TestQuestionPage(t *testing.T) {
	html := renderString(t, QuestionPage(QuestionData{
		Subject:    model.Subject{ID: 3, Code: "CS3351"},
		QuestionID: 7,
		Form: model.QuestionImport{
			Content: "Explain <b>latches</b>", Marks: 12, KLevel: "K3", Part: "B", COLevel: "CO2",
			HasOr: true, OrContent: `Design a "D" latch`, OrKLevel: "K2",
		},
		Errors: []string{"CO \"CO9\" must be CO1 to CO5"},
	}))

	assertHTML(t, html, []string{
		`action="/qp/subjects/3/questions/7/edit"`,
		`<textarea name="content" rows="4" required>Explain &lt;b&gt;latches&lt;/b&gt;</textarea>`,
		`<input name="marks" type="number" min="1" value="12" required>`,
		`<option value="K3" selected>K3</option>`,
		`<option value="B" selected>B</option>`,
		`<input type="checkbox" name="has_or" value="1" checked>`,
		`<textarea name="or_content" rows="3">Design a &#34;D&#34; latch</textarea>`,
		`<input name="or_marks" type="number" min="1" value="">`,
		`<select name="or_k_level"><option value="">-</option><option value="K1">K1</option><option value="K2" selected>K2</option>`,
		`<select name="or_part"><option value="" selected>-</option>`,
		"<li>CO &#34;CO9&#34; must be CO1 to CO5</li>",
		`href="/qp/subjects/3"`,
	}, []string{"<b>latches</b>", `name="has_formula" value="1" checked`})
}
