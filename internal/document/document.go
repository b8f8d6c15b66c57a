// Package document is the in-memory tree handed to a document writer:
// paragraphs and tables made of rows, cells and text runs. The types carry no
// behaviour; writers walk them.
package document

// Align is a paragraph's horizontal alignment.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Border is the line style of one edge. The zero value leaves the writer's default.
type Border string

const (
	BorderUnset  Border = ""
	BorderNone   Border = "nil"
	BorderSingle Border = "single"
)

// Borders describes all edges of a cell or table. Inside edges apply to tables only.
type Borders struct {
	Top, Bottom, Left, Right Border
	InsideH, InsideV         Border
}

// AllBorders returns Borders with every edge set to b.
func AllBorders(b Border) Borders {
	return Borders{Top: b, Bottom: b, Left: b, Right: b, InsideH: b, InsideV: b}
}

// TextRun is a span of uniformly formatted text. Size is in half-points.
type TextRun struct {
	Text string
	Font string
	Size int
	Bold bool
}

// Paragraph is a block of runs. Before and After are spacing in twips.
type Paragraph struct {
	Runs   []TextRun
	Align  Align
	Before int
	After  int
}

// Text returns the concatenated text of all runs.
func (p Paragraph) Text() string {
	s := ""
	for _, r := range p.Runs {
		s += r.Text
	}
	return s
}

// TableCell holds paragraphs. WidthPct is the share of the table width in percent.
type TableCell struct {
	Paragraphs   []Paragraph
	WidthPct     int
	VAlignCenter bool
	MarginLeft   int
	Borders      Borders
}

// Text returns the text of all paragraphs joined by newlines.
func (c TableCell) Text() string {
	s := ""
	for i, p := range c.Paragraphs {
		if i > 0 {
			s += "\n"
		}
		s += p.Text()
	}
	return s
}

// TableRow is one row of cells.
type TableRow struct {
	Cells []TableCell
}

// Table is a grid of rows. ColumnWidths are in twips; Fixed disables autofit.
type Table struct {
	Rows         []TableRow
	ColumnWidths []int
	WidthPct     int
	Fixed        bool
	Borders      Borders
}

// Block is a top-level element of a document body: *Paragraph or *Table.
type Block interface {
	isBlock()
}

func (*Paragraph) isBlock() {}
func (*Table) isBlock()     {}

// Margins are page margins in twips.
type Margins struct {
	Top, Right, Bottom, Left int
}

// Document is a single-section document.
type Document struct {
	Margins Margins
	Blocks  []Block
}

// Paragraphs returns the top-level paragraphs in order.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, b := range d.Blocks {
		if p, ok := b.(*Paragraph); ok {
			out = append(out, p)
		}
	}
	return out
}

// Tables returns the top-level tables in order.
func (d *Document) Tables() []*Table {
	var out []*Table
	for _, b := range d.Blocks {
		if t, ok := b.(*Table); ok {
			out = append(out, t)
		}
	}
	return out
}

// TwipsPerInch converts inches to the twentieths of a point used for lengths.
const TwipsPerInch = 1440

// Inches converts a length in inches to twips.
func Inches(in float64) int {
	return int(in*TwipsPerInch + 0.5)
}
