// Package assemble lays out a question paper as a document tree: the header
// block, one numbered question table per part, the course outcome
// distribution table and the knowledge level legend.
//
// Assembly never fails. Missing metadata is printed as whatever fallback text
// results, so defects show up on the page rather than as errors.
package assemble

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/qpaper/internal/document"
	"github.com/pavelanni/qpaper/internal/model"
)

const (
	font     = "Times New Roman"
	fontSize = 24

	defaultRegulation = "2021"
	defaultTestCode   = "UT1"

	// coColumns is the number of outcome columns printed, one more than a question can carry.
	coColumns = 6

	legend = "Knowledge Level: K1 – Remember, K2 – Understand, K3 – Apply, K4 – Analyze, K5 – Evaluate, K6 – Create"
)

// DefaultInstitution is printed when no institution is configured.
var DefaultInstitution = model.Institution{
	Name:    "ST.PETER'S COLLEGE OF ENGINEERING AND TECHNOLOGY",
	Status:  "(An Autonomous Institution)",
	Address: "AVADI, CHENNAI 600 054",
}

// DefaultPartLabels are the mark schemes printed beside each part heading.
// They are labels only and are not checked against the questions.
var DefaultPartLabels = map[model.Part]string{
	model.PartA: "(5 × 2 = 10 Marks)",
	model.PartB: "(2 × 12 = 24 Marks)",
	model.PartC: "(1 × 16 = 16 Marks)",
}

var semesterWords = map[string]string{
	"1": "FIRST",
	"2": "SECOND",
	"3": "THIRD",
	"4": "FOURTH",
	"5": "FIFTH",
	"6": "SIXTH",
	"7": "SEVENTH",
	"8": "EIGHTH",
}

var unitTestRe = regexp.MustCompile(`(?i)^\s*unit\s*test\s*-?\s*(\d+)\s*$`)

type options struct {
	institution model.Institution
	partLabels  map[model.Part]string
}

// Option configures Assemble.
type Option func(*options)

// WithInstitution replaces the identity lines. Empty fields keep the default line.
func WithInstitution(inst model.Institution) Option {
	return func(o *options) {
		if inst.Name != "" {
			o.institution.Name = inst.Name
		}
		if inst.Status != "" {
			o.institution.Status = inst.Status
		}
		if inst.Address != "" {
			o.institution.Address = inst.Address
		}
	}
}

// WithPartLabels replaces the mark scheme label of the given parts.
func WithPartLabels(labels map[model.Part]string) Option {
	return func(o *options) {
		for p, l := range labels {
			o.partLabels[p] = l
		}
	}
}

// Assemble builds the paper for meta from entries in their given order.
func Assemble(meta model.PaperMeta, entries []model.PaperQuestion, opts ...Option) *document.Document {
	o := options{institution: DefaultInstitution, partLabels: make(map[model.Part]string)}
	for p, l := range DefaultPartLabels {
		o.partLabels[p] = l
	}
	for _, opt := range opts {
		opt(&o)
	}

	byPart := make(map[model.Part][]model.PaperQuestion)
	var ordered []model.PaperQuestion
	for _, p := range model.Parts {
		for _, e := range entries {
			if strings.EqualFold(string(e.Part), string(p)) {
				byPart[p] = append(byPart[p], e)
			}
		}
		ordered = append(ordered, byPart[p]...)
	}

	doc := &document.Document{
		Margins: document.Margins{
			Top:    document.Inches(1),
			Right:  document.Inches(1),
			Bottom: document.Inches(1),
			Left:   document.Inches(1),
		},
	}
	doc.Blocks = append(doc.Blocks, header(meta, o.institution, TotalMarks(ordered))...)

	start := 0
	for _, p := range model.Parts {
		doc.Blocks = append(doc.Blocks,
			partHeader(p, o.partLabels[p]),
			questionTable(byPart[p], start),
		)
		start += len(byPart[p])
	}

	doc.Blocks = append(doc.Blocks,
		block(para(document.AlignCenter, 360, 240, bold("Distribution of CO's (Percentage wise)"))),
		// Unlike Max. Marks, the CO table also counts entries outside parts A to C.
		coTable(CODistribution(entries)),
		block(para(document.AlignLeft, 240, 240, run(legend))),
	)
	return doc
}

// TotalMarks sums the main question marks. Alternatives replace a question and never add to the total.
func TotalMarks(entries []model.PaperQuestion) int {
	total := 0
	for _, e := range entries {
		total += e.Marks
	}
	return total
}

// CODistribution sums marks per course outcome. A main question counts under its
// outcome and its alternative, when tagged, counts separately under the alternative's.
func CODistribution(entries []model.PaperQuestion) map[model.COLevel]int {
	dist := make(map[model.COLevel]int)
	for _, e := range entries {
		dist[e.COLevel] += e.Marks
		if e.HasOr && e.Alt != nil && e.Alt.COLevel != "" {
			marks := e.Alt.Marks
			if marks == 0 {
				marks = e.Marks
			}
			dist[e.Alt.COLevel] += marks
		}
	}
	return dist
}

// SemesterWord spells out semesters 1 to 8. Anything else is returned as given.
func SemesterWord(semester string) string {
	if w, ok := semesterWords[strings.TrimSpace(semester)]; ok {
		return w
	}
	return semester
}

// TestCode abbreviates a unit test name: "UNIT TEST - 2" becomes "UT2".
// Other names are returned unchanged; no test at all gives "UT1".
func TestCode(tests []string) string {
	t := first(tests)
	if t == "" {
		return defaultTestCode
	}
	if n, ok := UnitTestNumber(t); ok {
		return "UT" + strconv.Itoa(n)
	}
	return t
}

// UnitTestNumber extracts N from a unit test name such as "UNIT TEST - N" or "Unit Test N".
func UnitTestNumber(test string) (int, bool) {
	m := unitTestRe.FindStringSubmatch(test)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Filename is the download name of the paper for a subject.
func Filename(subjectCode string) string {
	return subjectCode + "_question_paper.docx"
}

func header(meta model.PaperMeta, inst model.Institution, total int) []document.Block {
	codeTable := &document.Table{
		WidthPct: 100,
		Fixed:    true,
		Rows: []document.TableRow{{Cells: []document.TableCell{
			{Paragraphs: []document.Paragraph{para(document.AlignCenter, 60, 60, run("Question Paper Code"))}, Borders: boxed, WidthPct: 20},
			{Paragraphs: []document.Paragraph{para(document.AlignCenter, 60, 60, run(TestCode(meta.Tests)+meta.SubjectCode))}, WidthPct: 10},
			{Paragraphs: []document.Paragraph{para(document.AlignCenter, 60, 60, run("Register No"))}, Borders: boxed, WidthPct: 20},
			{Paragraphs: []document.Paragraph{{}}, WidthPct: 15},
		}}},
	}

	regulation := first(meta.Regulations)
	if regulation == "" {
		regulation = defaultRegulation
	}

	centered := func(after int, r document.TextRun) document.Block {
		return block(para(document.AlignCenter, 0, after, r))
	}

	durationTable := &document.Table{
		WidthPct: 100,
		Fixed:    true,
		Rows: []document.TableRow{{Cells: []document.TableCell{
			{
				Paragraphs: []document.Paragraph{para(document.AlignLeft, 0, 0, run("Duration: "+meta.Duration+" hours"))},
				Borders:    noEdges,
				WidthPct:   50,
			},
			{
				Paragraphs: []document.Paragraph{para(document.AlignRight, 0, 0, run("Max. Marks: "+strconv.Itoa(total)))},
				Borders:    noEdges,
				WidthPct:   50,
			},
		}}},
	}

	return []document.Block{
		codeTable,
		centered(120, bold("")),
		centered(120, bold(inst.Name)),
		centered(120, bold(inst.Status)),
		centered(120, bold(inst.Address)),
		centered(120, bold("B.E./B.TECH - DEGREE EXAMINATIONS "+strings.Join(meta.Dates, ", "))),
		centered(120, bold(SemesterWord(first(meta.Semesters))+" SEMESTER")),
		centered(120, run(first(meta.Tests))),
		centered(120, run("DEPARTMENT OF "+strings.Join(meta.Departments, ", "))),
		centered(120, run(meta.SubjectCode+" - "+meta.SubjectName)),
		centered(360, run("(Regulations "+regulation+")")),
		durationTable,
		block(para(document.AlignCenter, 240, 240, run("Answer ALL Questions"))),
	}
}

func partHeader(p model.Part, label string) *document.Paragraph {
	return block(para(document.AlignCenter, 240, 240, run("PART-"+string(p)+" "+label)))
}

var (
	noEdges = document.Borders{
		Top:    document.BorderNone,
		Bottom: document.BorderNone,
		Left:   document.BorderNone,
		Right:  document.BorderNone,
	}
	boxed = document.Borders{
		Top:    document.BorderSingle,
		Bottom: document.BorderSingle,
		Left:   document.BorderSingle,
		Right:  document.BorderSingle,
	}
)

// questionTable numbers entries from start+1.
func questionTable(entries []model.PaperQuestion, start int) *document.Table {
	t := &document.Table{
		WidthPct: 100,
		Fixed:    true,
		ColumnWidths: []int{
			document.Inches(0.5), // number
			document.Inches(6.0), // content
			document.Inches(0.5), // marks
			document.Inches(0.7), // CO level
			document.Inches(0.5), // K level
		},
		Borders: document.AllBorders(document.BorderNone),
	}

	for i, e := range entries {
		n := strconv.Itoa(start + i + 1)
		paired := e.HasOr && e.Alt != nil && e.Alt.Content != ""

		label := n + "."
		if paired {
			label = n + ".a."
		}
		t.Rows = append(t.Rows, questionRow(label, e.Content, marksText(e.Marks), string(e.COLevel), string(e.KLevel)))
		if !paired {
			continue
		}

		t.Rows = append(t.Rows, orRow())

		marks := e.Alt.Marks
		if marks == 0 {
			marks = e.Marks
		}
		co := e.Alt.COLevel
		if co == "" {
			co = e.COLevel
		}
		k := e.Alt.KLevel
		if k == "" {
			k = e.KLevel
		}
		t.Rows = append(t.Rows, questionRow(n+".b.", e.Alt.Content, marksText(marks), string(co), string(k)))
	}
	return t
}

func questionRow(label, content, marks, co, k string) document.TableRow {
	return document.TableRow{Cells: []document.TableCell{
		{
			Paragraphs:   []document.Paragraph{para(document.AlignLeft, 60, 60, run(label))},
			WidthPct:     5,
			VAlignCenter: true,
			MarginLeft:   document.Inches(0.1),
			Borders:      noEdges,
		},
		{
			Paragraphs:   []document.Paragraph{para(document.AlignLeft, 60, 60, run(content))},
			WidthPct:     75,
			VAlignCenter: true,
			MarginLeft:   document.Inches(0.1),
			Borders:      noEdges,
		},
		{
			Paragraphs:   []document.Paragraph{para(document.AlignCenter, 20, 20, run(marks))},
			WidthPct:     5,
			VAlignCenter: true,
			Borders:      noEdges,
		},
		{
			Paragraphs:   []document.Paragraph{para(document.AlignCenter, 60, 60, run(co))},
			WidthPct:     10,
			VAlignCenter: true,
			Borders:      noEdges,
		},
		{
			Paragraphs:   []document.Paragraph{para(document.AlignCenter, 60, 60, run(k))},
			WidthPct:     5,
			VAlignCenter: true,
			Borders:      noEdges,
		},
	}}
}

// orRow has "OR" in the content column only.
func orRow() document.TableRow {
	row := document.TableRow{}
	for i := 0; i < 5; i++ {
		text, width := "", 5
		if i == 1 {
			text, width = "OR", 75
		}
		row.Cells = append(row.Cells, document.TableCell{
			Paragraphs: []document.Paragraph{para(document.AlignCenter, 40, 40, bold(text))},
			WidthPct:   width,
			Borders:    noEdges,
		})
	}
	return row
}

// coTable shows marks per outcome. The percentage row prints 100 for every
// outcome that has marks, matching the paper format in use.
func coTable(dist map[model.COLevel]int) *document.Table {
	cell := func(text string) document.TableCell {
		return document.TableCell{
			Paragraphs: []document.Paragraph{para(document.AlignCenter, 0, 0, run(text))},
			Borders:    boxed,
		}
	}

	headerRow := document.TableRow{Cells: []document.TableCell{cell("Evaluation")}}
	marksRow := document.TableRow{Cells: []document.TableCell{cell("Marks")}}
	pctRow := document.TableRow{Cells: []document.TableCell{cell("%")}}
	widths := []int{document.Inches(1.5)}

	for i := 1; i <= coColumns; i++ {
		co := model.COLevel("CO" + strconv.Itoa(i))
		headerRow.Cells = append(headerRow.Cells, cell(string(co)))
		marks, pct := "-", "-"
		if m := dist[co]; m > 0 {
			marks, pct = strconv.Itoa(m), "100"
		}
		marksRow.Cells = append(marksRow.Cells, cell(marks))
		pctRow.Cells = append(pctRow.Cells, cell(pct))
		widths = append(widths, document.Inches(1.25))
	}

	return &document.Table{
		WidthPct:     100,
		Fixed:        true,
		ColumnWidths: widths,
		Rows:         []document.TableRow{headerRow, marksRow, pctRow},
	}
}

func marksText(m int) string {
	if m == 0 {
		return ""
	}
	return strconv.Itoa(m)
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func run(text string) document.TextRun {
	return document.TextRun{Text: text, Font: font, Size: fontSize}
}

func bold(text string) document.TextRun {
	r := run(text)
	r.Bold = true
	return r
}

func block(p document.Paragraph) *document.Paragraph {
	return &p
}

func para(align document.Align, before, after int, runs ...document.TextRun) document.Paragraph {
	return document.Paragraph{Runs: runs, Align: align, Before: before, After: after}
}
