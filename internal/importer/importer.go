// Package importer reads question bank files. Spreadsheets follow the
// S.No / Question / Mark / K-Level / CO / Part column layout; JSON files hold
// the records written by the bank export.
package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/qpaper/internal/model"
)

// ErrNoRows is returned for a file without any question rows.
var ErrNoRows = errors.New("no questions found in file")

// ErrUnsupported is returned by Parse for a file type it cannot read.
var ErrUnsupported = errors.New("unsupported file type")

var validate = validator.New()

// RowError is a problem with one data row, numbered from 1.
type RowError struct {
	Row int
	Msg string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Msg)
}

// RowErrors collects every row problem of a file.
type RowErrors []RowError

func (es RowErrors) Error() string {
	lines := make([]string, len(es))
	for i, e := range es {
		lines[i] = e.Error()
	}
	return "validation failed:\n" + strings.Join(lines, "\n")
}

// Parse reads a file by its extension: .xlsx or .json.
func Parse(name string, r io.Reader) ([]model.QuestionImport, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FromXLSX(r)
	case ".json":
		return FromJSON(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
}

// Checksum returns the hex SHA-256 of a file's content.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Spreadsheet header names, matched case-insensitively.
var columns = map[string]string{
	"s.no":     "sno",
	"question": "question",
	"mark":     "mark",
	"marks":    "mark",
	"k-level":  "k",
	"k level":  "k",
	"klevel":   "k",
	"co":       "co",
	"part":     "part",
}

var requiredColumns = []string{"question", "mark", "k", "co"}

// FromXLSX reads the first sheet of a workbook. The first row is the header.
func FromXLSX(r io.Reader) ([]model.QuestionImport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	idx := make(map[string]int)
	for i, h := range rows[0] {
		if key, ok := columns[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := idx[key]; !dup {
				idx[key] = i
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column for %q in header row", c)
		}
	}
	cell := func(row []string, key string) string {
		i, ok := idx[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		out  []model.QuestionImport
		errs RowErrors
	)
	n := 0
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		n++
		markText := cell(row, "mark")
		marks, markErr := parseMarks(markText)
		qi := model.QuestionImport{
			Content: cell(row, "question"),
			Marks:   marks,
			KLevel:  cell(row, "k"),
			COLevel: cell(row, "co"),
			Part:    cell(row, "part"),
		}
		rowErrs := check(n, &qi)
		if markErr != nil {
			// Replace the generic marks message with one quoting the cell.
			rowErrs = dropField(rowErrs, "Mark")
			rowErrs = append(rowErrs, RowError{Row: n, Msg: fmt.Sprintf("Mark %q must be a positive number", markText)})
		}
		errs = append(errs, rowErrs...)
		out = append(out, qi)
	}
	if n == 0 {
		return nil, ErrNoRows
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// FromJSON reads either a bare array of records or a bank export object.
func FromJSON(r io.Reader) ([]model.QuestionImport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var rows []model.QuestionImport
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &rows)
	} else {
		var bank model.BankExport
		err = json.Unmarshal(data, &bank)
		rows = bank.Questions
	}
	if err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	var errs RowErrors
	for i := range rows {
		errs = append(errs, check(i+1, &rows[i])...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return rows, nil
}

// check normalizes one record in place and reports what is wrong with it.
func check(row int, qi *model.QuestionImport) RowErrors {
	qi.Content = strings.TrimSpace(qi.Content)
	qi.KLevel = strings.ToUpper(strings.TrimSpace(qi.KLevel))
	qi.COLevel = strings.ToUpper(strings.TrimSpace(qi.COLevel))
	qi.Part = normalizePart(qi.Part)
	qi.OrContent = strings.TrimSpace(qi.OrContent)
	qi.OrKLevel = strings.ToUpper(strings.TrimSpace(qi.OrKLevel))
	qi.OrCOLevel = strings.ToUpper(strings.TrimSpace(qi.OrCOLevel))
	if qi.OrPart != "" {
		qi.OrPart = normalizePart(qi.OrPart)
	}

	var errs RowErrors
	if err := validate.Struct(qi); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return RowErrors{{Row: row, Msg: err.Error()}}
		}
		for _, fe := range verrs {
			errs = append(errs, RowError{Row: row, Msg: fieldMessage(fe)})
		}
	}

	var f bool
	qi.Content, f = ConvertFormulas(qi.Content)
	qi.HasFormula = qi.HasFormula || f
	if qi.OrContent != "" {
		qi.OrContent, f = ConvertFormulas(qi.OrContent)
		qi.OrHasFormula = qi.OrHasFormula || f
	}
	return errs
}

// Check normalizes and validates one question entered in a form, converting
// formulas as an import would. It returns no messages when qi is valid.
func Check(qi *model.QuestionImport) []string {
	if !qi.HasOr {
		qi.OrContent, qi.OrMarks, qi.OrKLevel, qi.OrPart, qi.OrCOLevel, qi.OrHasFormula = "", 0, "", "", "", false
	}
	errs := check(0, qi)
	if qi.HasOr && qi.OrContent == "" {
		errs = append(errs, RowError{Msg: "OR question content cannot be empty"})
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Msg
	}
	return msgs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Content":
		return "Question content cannot be empty"
	case "Marks":
		return fmt.Sprintf("Mark \"%v\" must be a positive number", fe.Value())
	case "KLevel":
		return fmt.Sprintf("K-Level %q must be K1 to K6", fe.Value())
	case "COLevel":
		return fmt.Sprintf("CO %q must be CO1 to CO5", fe.Value())
	case "OrMarks":
		return fmt.Sprintf("OR Mark \"%v\" must be a positive number", fe.Value())
	case "OrKLevel":
		return fmt.Sprintf("OR K-Level %q must be K1 to K6", fe.Value())
	case "OrCOLevel":
		return fmt.Sprintf("OR CO %q must be CO1 to CO5", fe.Value())
	}
	return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
}

func dropField(errs RowErrors, prefix string) RowErrors {
	out := errs[:0]
	for _, e := range errs {
		if !strings.HasPrefix(e.Msg, prefix+" ") {
			out = append(out, e)
		}
	}
	return out
}

// normalizePart upper-cases a part letter; anything outside A-C becomes A.
func normalizePart(s string) string {
	p, ok := model.ParsePart(s)
	if !ok {
		return string(model.PartA)
	}
	return string(p)
}

func parseMarks(s string) (int, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("marks %q not a positive whole number", s)
	}
	return int(v), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var (
	formulaRe     = regexp.MustCompile("`([^`]+)`")
	superscriptRe = regexp.MustCompile(`(\w+)\^(\d+)`)
	vectorRe      = regexp.MustCompile(`\b(a)([xyz])\b`)
	minusRe       = regexp.MustCompile(`\s*-\s*`)
	productRe     = regexp.MustCompile(`(\d+)([a-zA-Z])`)
)

// ConvertFormulas rewrites every backtick-quoted formula as inline LaTeX and
// reports whether any was found.
func ConvertFormulas(s string) (string, bool) {
	found := false
	out := formulaRe.ReplaceAllStringFunc(s, func(m string) string {
		found = true
		return toLatex(m[1 : len(m)-1])
	})
	return out, found
}

func toLatex(f string) string {
	f = superscriptRe.ReplaceAllString(f, "$1^{$2}")
	f = vectorRe.ReplaceAllString(f, `\vec{$1}_$2`)
	f = minusRe.ReplaceAllString(f, " - ")
	f = productRe.ReplaceAllString(f, `$1\,$2`)
	return `\(` + f + `\)`
}

// ToQuestion converts a validated record into a bank question for subjectID.
func ToQuestion(qi model.QuestionImport, subjectID, createdBy int64) model.Question {
	q := model.Question{
		SubjectID:  subjectID,
		Content:    qi.Content,
		Marks:      qi.Marks,
		KLevel:     model.KLevel(qi.KLevel),
		Part:       model.Part(qi.Part),
		COLevel:    model.COLevel(qi.COLevel),
		HasFormula: qi.HasFormula,
		HasOr:      qi.HasOr && qi.OrContent != "",
		CreatedBy:  createdBy,
	}
	if q.HasOr {
		q.OrContent = qi.OrContent
		q.OrMarks = qi.OrMarks
		q.OrKLevel = model.KLevel(qi.OrKLevel)
		q.OrPart = model.Part(qi.OrPart)
		q.OrCOLevel = model.COLevel(qi.OrCOLevel)
		q.OrHasFormula = qi.OrHasFormula
	}
	return q
}

// FromQuestion converts a bank question into its export record.
func FromQuestion(q model.Question) model.QuestionImport {
	qi := model.QuestionImport{
		Content:    q.Content,
		Marks:      q.Marks,
		KLevel:     string(q.KLevel),
		Part:       string(q.Part),
		COLevel:    string(q.COLevel),
		HasFormula: q.HasFormula,
	}
	if q.HasOr && q.OrContent != "" {
		qi.HasOr = true
		qi.OrContent = q.OrContent
		qi.OrMarks = q.OrMarks
		qi.OrKLevel = string(q.OrKLevel)
		qi.OrPart = string(q.OrPart)
		qi.OrCOLevel = string(q.OrCOLevel)
		qi.OrHasFormula = q.OrHasFormula
	}
	return qi
}
