package assemble

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pavelanni/qpaper/internal/document"
	"github.com/pavelanni/qpaper/internal/model"
)

func testMeta() model.PaperMeta {
	return model.PaperMeta{
		Departments: []string{"COMPUTER SCIENCE AND ENGINEERING"},
		Years:       []string{"II"},
		Semesters:   []string{"3"},
		Tests:       []string{"UNIT TEST - 2"},
		Duration:    "1.5",
		Dates:       []string{"NOV 2026"},
		Regulations: []string{"2023"},
		SubjectCode: "CS3351",
		SubjectName: "DIGITAL PRINCIPLES",
	}
}

func entry(id string, part model.Part, marks int, co model.COLevel) model.PaperQuestion {
	return model.PaperQuestion{ID: id, Content: "question " + id, Part: part, Marks: marks, COLevel: co, KLevel: "K2"}
}

func withAlt(e model.PaperQuestion, alt model.Alternative) model.PaperQuestion {
	e.HasOr = true
	e.Alt = &alt
	return e
}

func rowLabels(t *document.Table) []string {
	var out []string
	for _, r := range t.Rows {
		out = append(out, r.Cells[0].Text())
	}
	return out
}

func TestTotalMarks(t *testing.T) {
	entries := []model.PaperQuestion{
		entry("1", model.PartA, 2, "CO1"),
		withAlt(entry("2", model.PartB, 12, "CO1"), model.Alternative{Content: "alt", Marks: 10}),
	}
	if got := TotalMarks(entries); got != 14 {
		t.Errorf("TotalMarks() = %d, want 14", got)
	}
}

func TestCODistribution(t *testing.T) {
	entries := []model.PaperQuestion{
		entry("1", model.PartB, 10, "CO1"),
		withAlt(entry("2", model.PartC, 16, "CO2"), model.Alternative{Content: "alt", Marks: 6, COLevel: "CO1"}),
		// Alternative without marks counts with the main question's marks.
		withAlt(entry("3", model.PartA, 2, "CO3"), model.Alternative{Content: "alt", COLevel: "CO4"}),
		// Alternative without an outcome adds nothing.
		withAlt(entry("4", model.PartA, 2, "CO3"), model.Alternative{Content: "alt", Marks: 2}),
	}
	want := map[model.COLevel]int{"CO1": 16, "CO2": 16, "CO3": 4, "CO4": 2}
	if diff := cmp.Diff(want, CODistribution(entries)); diff != "" {
		t.Errorf("CODistribution mismatch (-want +got):\n%s", diff)
	}
}

func TestSemesterWord(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1", "FIRST"},
		{"4", "FOURTH"},
		{"8", "EIGHTH"},
		{"9", "9"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SemesterWord(tt.in); got != tt.want {
			t.Errorf("SemesterWord(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTestCode(t *testing.T) {
	tests := []struct {
		name  string
		tests []string
		want  string
	}{
		{"none", nil, "UT1"},
		{"upper with dash", []string{"UNIT TEST - 3"}, "UT3"},
		{"title case", []string{"Unit Test 4"}, "UT4"},
		{"other", []string{"MODEL EXAM"}, "MODEL EXAM"},
		{"first wins", []string{"UNIT TEST - 1", "UNIT TEST - 2"}, "UT1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TestCode(tt.tests); got != tt.want {
				t.Errorf("TestCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("CS3351"); got != "CS3351_question_paper.docx" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestAssembleStructure(t *testing.T) {
	entries := []model.PaperQuestion{
		entry("1", model.PartA, 2, "CO1"),
		entry("2", "a", 2, "CO1"),
		withAlt(entry("3", model.PartB, 12, "CO2"), model.Alternative{Content: "alt 3", Marks: 12, COLevel: "CO2", KLevel: "K4"}),
		withAlt(entry("4", model.PartC, 16, "CO2"), model.Alternative{Content: "alt 4"}),
	}
	doc := Assemble(testMeta(), entries)

	tables := doc.Tables()
	if len(tables) != 6 {
		t.Fatalf("expected 6 tables (code, duration, A, B, C, CO), got %d", len(tables))
	}

	if got := tables[0].Rows[0].Cells[1].Text(); got != "UT2CS3351" {
		t.Errorf("paper code = %q, want UT2CS3351", got)
	}
	if got := tables[1].Rows[0].Cells[1].Text(); got != "Max. Marks: 32" {
		t.Errorf("max marks cell = %q, want 'Max. Marks: 32'", got)
	}
	if got := tables[1].Rows[0].Cells[0].Text(); got != "Duration: 1.5 hours" {
		t.Errorf("duration cell = %q", got)
	}

	// Numbering continues across parts.
	if diff := cmp.Diff([]string{"1.", "2."}, rowLabels(tables[2])); diff != "" {
		t.Errorf("part A labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"3.a.", "", "3.b."}, rowLabels(tables[3])); diff != "" {
		t.Errorf("part B labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"4.a.", "", "4.b."}, rowLabels(tables[4])); diff != "" {
		t.Errorf("part C labels (-want +got):\n%s", diff)
	}

	orRow := tables[3].Rows[1]
	if len(orRow.Cells) != 5 || orRow.Cells[1].Text() != "OR" {
		t.Errorf("expected OR in second column, got %q", orRow.Cells[1].Text())
	}
	if !orRow.Cells[1].Paragraphs[0].Runs[0].Bold || orRow.Cells[1].Paragraphs[0].Align != document.AlignCenter {
		t.Error("OR separator should be bold and centered")
	}
	for i, c := range orRow.Cells {
		if i != 1 && c.Text() != "" {
			t.Errorf("OR row cell %d should be empty, got %q", i, c.Text())
		}
	}

	// Alternative row takes its own values.
	alt := tables[3].Rows[2].Cells
	if alt[1].Text() != "alt 3" || alt[2].Text() != "12" || alt[3].Text() != "CO2" || alt[4].Text() != "K4" {
		t.Errorf("unexpected alternative row: %q %q %q %q", alt[1].Text(), alt[2].Text(), alt[3].Text(), alt[4].Text())
	}
	// And falls back to the main question's values when it has none.
	fallback := tables[4].Rows[2].Cells
	if fallback[2].Text() != "16" || fallback[3].Text() != "CO2" || fallback[4].Text() != "K2" {
		t.Errorf("unexpected fallback row: %q %q %q", fallback[2].Text(), fallback[3].Text(), fallback[4].Text())
	}

	paras := doc.Paragraphs()
	last := paras[len(paras)-1].Text()
	if !strings.HasPrefix(last, "Knowledge Level: K1 – Remember") || !strings.HasSuffix(last, "K6 – Create") {
		t.Errorf("legend should be last, got %q", last)
	}
}

func TestAssembleContinuousNumbering(t *testing.T) {
	entries := []model.PaperQuestion{
		entry("1", model.PartA, 2, "CO1"),
		entry("2", model.PartA, 2, "CO1"),
		entry("3", model.PartB, 12, "CO1"),
	}
	tables := Assemble(testMeta(), entries).Tables()
	if got := rowLabels(tables[3]); len(got) != 1 || got[0] != "3." {
		t.Errorf("part B labels = %v, want [3.]", got)
	}
	if len(tables[4].Rows) != 0 {
		t.Errorf("part C should be empty, got %d rows", len(tables[4].Rows))
	}
}

func TestAssembleHeaderText(t *testing.T) {
	doc := Assemble(testMeta(), nil)
	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	joined := strings.Join(texts, "\n")
	for _, want := range []string{
		DefaultInstitution.Name,
		DefaultInstitution.Status,
		DefaultInstitution.Address,
		"B.E./B.TECH - DEGREE EXAMINATIONS NOV 2026",
		"THIRD SEMESTER",
		"UNIT TEST - 2",
		"DEPARTMENT OF COMPUTER SCIENCE AND ENGINEERING",
		"CS3351 - DIGITAL PRINCIPLES",
		"(Regulations 2023)",
		"Answer ALL Questions",
		"PART-A (5 × 2 = 10 Marks)",
		"PART-B (2 × 12 = 24 Marks)",
		"PART-C (1 × 16 = 16 Marks)",
		"Distribution of CO's (Percentage wise)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestAssembleMissingMetadata(t *testing.T) {
	doc := Assemble(model.PaperMeta{}, []model.PaperQuestion{entry("1", model.PartA, 2, "CO1")})
	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	joined := strings.Join(texts, "\n")
	if !strings.Contains(joined, "(Regulations 2021)") {
		t.Error("expected default regulation 2021")
	}
	if !strings.Contains(joined, "\n SEMESTER\n") {
		t.Errorf("expected bare semester fallback, got:\n%s", joined)
	}
	if got := doc.Tables()[0].Rows[0].Cells[1].Text(); got != "UT1" {
		t.Errorf("paper code = %q, want UT1", got)
	}
}

func TestAssembleOptions(t *testing.T) {
	doc := Assemble(testMeta(), nil,
		WithInstitution(model.Institution{Name: "GOVT POLYTECHNIC"}),
		WithPartLabels(map[model.Part]string{model.PartB: "(5 × 13 = 65 Marks)"}),
	)
	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	joined := strings.Join(texts, "\n")
	for _, want := range []string{"GOVT POLYTECHNIC", DefaultInstitution.Address, "PART-B (5 × 13 = 65 Marks)", "PART-A (5 × 2 = 10 Marks)"} {
		if !strings.Contains(joined, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(joined, DefaultInstitution.Name) {
		t.Error("default institution name should be replaced")
	}
}

func TestCOTable(t *testing.T) {
	entries := []model.PaperQuestion{
		entry("1", model.PartB, 10, "CO1"),
		withAlt(entry("2", model.PartC, 16, "CO2"), model.Alternative{Content: "alt", Marks: 6, COLevel: "CO1"}),
	}
	tables := Assemble(testMeta(), entries).Tables()
	co := tables[len(tables)-1]
	if len(co.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(co.Rows))
	}
	var header, marks, pct []string
	for i := range co.Rows[0].Cells {
		header = append(header, co.Rows[0].Cells[i].Text())
		marks = append(marks, co.Rows[1].Cells[i].Text())
		pct = append(pct, co.Rows[2].Cells[i].Text())
	}
	if diff := cmp.Diff([]string{"Evaluation", "CO1", "CO2", "CO3", "CO4", "CO5", "CO6"}, header); diff != "" {
		t.Errorf("header (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Marks", "16", "16", "-", "-", "-", "-"}, marks); diff != "" {
		t.Errorf("marks (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"%", "100", "100", "-", "-", "-", "-"}, pct); diff != "" {
		t.Errorf("percent (-want +got):\n%s", diff)
	}
	if len(co.ColumnWidths) != 7 {
		t.Errorf("expected 7 column widths, got %d", len(co.ColumnWidths))
	}
}

func TestAssembleUnknownPartCountsOnlyTowardsCOTable(t *testing.T) {
	entries := []model.PaperQuestion{
		entry("1", model.PartA, 2, "CO1"),
		entry("2", model.Part("D"), 10, "CO2"),
	}
	tables := Assemble(testMeta(), entries).Tables()
	if got := tables[1].Rows[0].Cells[1].Text(); got != "Max. Marks: 2" {
		t.Errorf("max marks = %q, want entries outside the parts skipped", got)
	}
	for _, tbl := range tables {
		for _, r := range tbl.Rows {
			for _, c := range r.Cells {
				if strings.Contains(c.Text(), "question 2") {
					t.Fatal("entry outside the parts must not be printed")
				}
			}
		}
	}
	co := tables[len(tables)-1]
	var marks []string
	for _, c := range co.Rows[1].Cells {
		marks = append(marks, c.Text())
	}
	if diff := cmp.Diff([]string{"Marks", "2", "10", "-", "-", "-", "-"}, marks); diff != "" {
		t.Errorf("CO marks (-want +got):\n%s", diff)
	}
}

func TestUnitTestNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"UNIT TEST - 2", 2, true},
		{"Unit Test 5", 5, true},
		{"unit test-12", 12, true},
		{"MODEL EXAM", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := UnitTestNumber(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("UnitTestNumber(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
