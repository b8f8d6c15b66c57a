// Package docx writes a document tree as a WordprocessingML package (.docx).
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/pavelanni/qpaper/internal/document"
)

// ContentType is the media type of a .docx file.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// A4 in twips.
const (
	pageWidth  = 11906
	pageHeight = 16838
)

const (
	nsMain = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsRel  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	relOfficeDocument = nsRel + "/officeDocument"
	relStyles         = nsRel + "/styles"
)

const xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

var packageTypes = contentTypes{
	Defaults: []ctDefault{
		{Extension: "rels", ContentType: "application/vnd.openxmlformats-package.relationships+xml"},
		{Extension: "xml", ContentType: "application/xml"},
	},
	Overrides: []ctOverride{
		{PartName: "/word/document.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"},
		{PartName: "/word/styles.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"},
	},
}

var packageRels = relationships{Rels: []relationship{{ID: "rId1", Type: relOfficeDocument, Target: "word/document.xml"}}}

var documentRels = relationships{Rels: []relationship{{ID: "rId1", Type: relStyles, Target: "styles.xml"}}}

// styles sets Times New Roman 12pt with single spacing and no paragraph gap.
var styles = wStyles{
	NsW: nsMain,
	DocDefaults: wDocDefaults{
		RPr: wRPr{
			Fonts: &wFonts{ASCII: "Times New Roman", HAnsi: "Times New Roman", CS: "Times New Roman"},
			Sz:    &wIntVal{Val: 24},
			SzCs:  &wIntVal{Val: 24},
		},
		PPr: wPPr{Spacing: &wSpacing{Line: 240, LineRule: "auto"}},
	},
	Styles: []wStyle{
		{Type: "paragraph", Default: "1", ID: "Normal", Name: wVal{Val: "Normal"}, QFormat: &struct{}{}},
		{Type: "table", Default: "1", ID: "TableNormal", Name: wVal{Val: "Normal Table"}, TblPr: &wTblPr{
			Ind: &wWidth{Type: "dxa"},
			CellMar: &wCellMar{
				Top:    &wWidth{Type: "dxa"},
				Left:   &wWidth{W: 108, Type: "dxa"},
				Bottom: &wWidth{Type: "dxa"},
				Right:  &wWidth{W: 108, Type: "dxa"},
			},
		}},
	},
}

// Writer renders documents as .docx.
type Writer struct{}

// Write renders doc to w.
func (Writer) Write(w io.Writer, doc *document.Document) error {
	return Write(w, doc)
}

// Write renders doc to w as a .docx package.
func Write(w io.Writer, doc *document.Document) error {
	if doc == nil {
		return fmt.Errorf("docx: nil document")
	}
	parts := []struct {
		name string
		v    any
	}{
		{"[Content_Types].xml", packageTypes},
		{"_rels/.rels", packageRels},
		{"word/document.xml", body(doc)},
		{"word/styles.xml", styles},
		{"word/_rels/document.xml.rels", documentRels},
	}

	zw := zip.NewWriter(w)
	for _, p := range parts {
		data, err := xml.Marshal(p.v)
		if err != nil {
			return fmt.Errorf("docx: marshal %s: %w", p.name, err)
		}
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("docx: create %s: %w", p.name, err)
		}
		if _, err := io.WriteString(f, xmlDecl); err != nil {
			return fmt.Errorf("docx: write %s: %w", p.name, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("docx: write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("docx: close package: %w", err)
	}
	return nil
}

// Bytes renders doc into memory.
func Bytes(doc *document.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func body(doc *document.Document) *wDocument {
	m := doc.Margins
	textWidth := pageWidth - m.Left - m.Right
	var blocks []any
	for _, blk := range doc.Blocks {
		switch v := blk.(type) {
		case *document.Paragraph:
			blocks = append(blocks, paragraph(*v))
		case *document.Table:
			// Word rejects a table without rows.
			if len(v.Rows) > 0 {
				blocks = append(blocks, table(v, textWidth))
			}
		}
	}
	// A body must not end in a table.
	if n := len(blocks); n == 0 {
		blocks = append(blocks, &wP{})
	} else if _, ok := blocks[n-1].(*wTbl); ok {
		blocks = append(blocks, &wP{})
	}

	return &wDocument{
		NsW: nsMain,
		NsR: nsRel,
		Body: wBody{
			Blocks: blocks,
			SectPr: wSectPr{
				PgSz:  wPgSz{W: pageWidth, H: pageHeight},
				PgMar: wPgMar{Top: m.Top, Right: m.Right, Bottom: m.Bottom, Left: m.Left, Header: 720, Footer: 720},
			},
		},
	}
}

func paragraph(p document.Paragraph) *wP {
	pr := &wPPr{Spacing: &wSpacing{Before: p.Before, After: p.After}}
	if p.Align != "" {
		pr.Jc = &wVal{Val: string(p.Align)}
	}
	out := &wP{Pr: pr}
	for _, r := range p.Runs {
		out.Runs = append(out.Runs, textRun(r))
	}
	return out
}

func textRun(r document.TextRun) wR {
	var out wR
	if r.Font != "" {
		out.Pr.Fonts = &wFonts{ASCII: r.Font, HAnsi: r.Font, CS: r.Font}
	}
	if r.Bold {
		out.Pr.B, out.Pr.BCs = &struct{}{}, &struct{}{}
	}
	if r.Size > 0 {
		out.Pr.Sz, out.Pr.SzCs = &wIntVal{Val: r.Size}, &wIntVal{Val: r.Size}
	}
	for i, line := range strings.Split(r.Text, "\n") {
		if i > 0 {
			out.Content = append(out.Content, &wBr{})
		}
		out.Content = append(out.Content, &wT{Space: "preserve", Text: line})
	}
	return out
}

func table(t *document.Table, textWidth int) *wTbl {
	out := &wTbl{Pr: wTblPr{
		W:       &wWidth{Type: "auto"},
		Borders: borders(t.Borders, true),
	}}
	if t.WidthPct > 0 {
		out.Pr.W = &wWidth{W: t.WidthPct * 50, Type: "pct"}
	}
	if t.Fixed {
		out.Pr.Layout = &wType{Type: "fixed"}
	}
	for _, w := range grid(t, textWidth) {
		out.Grid = append(out.Grid, wGridCol{W: w})
	}
	for _, row := range t.Rows {
		var tr wTr
		for _, c := range row.Cells {
			tr.Cells = append(tr.Cells, cell(c))
		}
		out.Rows = append(out.Rows, tr)
	}
	return out
}

// grid returns column widths in twips, derived from the first row's cell shares when none are set.
func grid(t *document.Table, textWidth int) []int {
	if len(t.ColumnWidths) > 0 {
		return t.ColumnWidths
	}
	cells := t.Rows[0].Cells
	out := make([]int, len(cells))
	for i, c := range cells {
		pct := c.WidthPct
		if pct == 0 {
			pct = 100 / len(cells)
		}
		out[i] = textWidth * pct / 100
	}
	return out
}

func cell(c document.TableCell) wTc {
	out := wTc{Pr: wTcPr{Borders: borders(c.Borders, false)}}
	if c.WidthPct > 0 {
		out.Pr.W = &wWidth{W: c.WidthPct * 50, Type: "pct"}
	}
	if c.MarginLeft > 0 {
		out.Pr.Mar = &wCellMar{Left: &wWidth{W: c.MarginLeft, Type: "dxa"}}
	}
	if c.VAlignCenter {
		out.Pr.VAlign = &wVal{Val: "center"}
	}
	for _, p := range c.Paragraphs {
		out.Paragraphs = append(out.Paragraphs, *paragraph(p))
	}
	// Every cell needs at least one paragraph.
	if len(out.Paragraphs) == 0 {
		out.Paragraphs = []wP{{}}
	}
	return out
}

// borders returns nil when every edge keeps the default.
func borders(bs document.Borders, inside bool) *wBorders {
	out := &wBorders{
		Top:    border(bs.Top),
		Left:   border(bs.Left),
		Bottom: border(bs.Bottom),
		Right:  border(bs.Right),
	}
	if inside {
		out.InsideH, out.InsideV = border(bs.InsideH), border(bs.InsideV)
	}
	if *out == (wBorders{}) {
		return nil
	}
	return out
}

func border(b document.Border) *wBorder {
	switch b {
	case document.BorderNone:
		return &wBorder{Val: "nil"}
	case document.BorderSingle:
		return &wBorder{Val: "single", Size: 4, Space: "0", Color: "000000"}
	}
	return nil
}
