package docx

import "encoding/xml"

// WordprocessingML elements, in the child order the schema requires.

type contentTypes struct {
	XMLName   xml.Name     `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type relationships struct {
	XMLName xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Rels    []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	NsW     string   `xml:"xmlns:w,attr"`
	NsR     string   `xml:"xmlns:r,attr"`
	Body    wBody    `xml:"w:body"`
}

// wBody holds *wP and *wTbl values in document order.
type wBody struct {
	Blocks []any
	SectPr wSectPr `xml:"w:sectPr"`
}

type wSectPr struct {
	PgSz  wPgSz  `xml:"w:pgSz"`
	PgMar wPgMar `xml:"w:pgMar"`
}

type wPgSz struct {
	W int `xml:"w:w,attr"`
	H int `xml:"w:h,attr"`
}

type wPgMar struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
	Header int `xml:"w:header,attr"`
	Footer int `xml:"w:footer,attr"`
	Gutter int `xml:"w:gutter,attr"`
}

type wP struct {
	XMLName xml.Name `xml:"w:p"`
	Pr      *wPPr    `xml:"w:pPr"`
	Runs    []wR     `xml:"w:r"`
}

type wPPr struct {
	Spacing *wSpacing `xml:"w:spacing"`
	Jc      *wVal     `xml:"w:jc"`
}

type wSpacing struct {
	Before   int    `xml:"w:before,attr"`
	After    int    `xml:"w:after,attr"`
	Line     int    `xml:"w:line,attr,omitempty"`
	LineRule string `xml:"w:lineRule,attr,omitempty"`
}

// wR holds wT and wBr values in order.
type wR struct {
	Pr      wRPr `xml:"w:rPr"`
	Content []any
}

type wRPr struct {
	Fonts *wFonts   `xml:"w:rFonts"`
	B     *struct{} `xml:"w:b"`
	BCs   *struct{} `xml:"w:bCs"`
	Sz    *wIntVal  `xml:"w:sz"`
	SzCs  *wIntVal  `xml:"w:szCs"`
}

type wFonts struct {
	ASCII string `xml:"w:ascii,attr"`
	HAnsi string `xml:"w:hAnsi,attr"`
	CS    string `xml:"w:cs,attr"`
}

type wT struct {
	XMLName xml.Name `xml:"w:t"`
	Space   string   `xml:"xml:space,attr"`
	Text    string   `xml:",chardata"`
}

type wBr struct {
	XMLName xml.Name `xml:"w:br"`
}

type wTbl struct {
	XMLName xml.Name   `xml:"w:tbl"`
	Pr      wTblPr     `xml:"w:tblPr"`
	Grid    []wGridCol `xml:"w:tblGrid>w:gridCol"`
	Rows    []wTr      `xml:"w:tr"`
}

type wTblPr struct {
	W       *wWidth   `xml:"w:tblW"`
	Ind     *wWidth   `xml:"w:tblInd"`
	Borders *wBorders `xml:"w:tblBorders"`
	Layout  *wType    `xml:"w:tblLayout"`
	CellMar *wCellMar `xml:"w:tblCellMar"`
}

type wGridCol struct {
	W int `xml:"w:w,attr"`
}

type wTr struct {
	Cells []wTc `xml:"w:tc"`
}

type wTc struct {
	Pr         wTcPr `xml:"w:tcPr"`
	Paragraphs []wP  `xml:"w:p"`
}

type wTcPr struct {
	W       *wWidth   `xml:"w:tcW"`
	Borders *wBorders `xml:"w:tcBorders"`
	Mar     *wCellMar `xml:"w:tcMar"`
	VAlign  *wVal     `xml:"w:vAlign"`
}

type wBorders struct {
	Top     *wBorder `xml:"w:top"`
	Left    *wBorder `xml:"w:left"`
	Bottom  *wBorder `xml:"w:bottom"`
	Right   *wBorder `xml:"w:right"`
	InsideH *wBorder `xml:"w:insideH"`
	InsideV *wBorder `xml:"w:insideV"`
}

type wBorder struct {
	Val   string `xml:"w:val,attr"`
	Size  int    `xml:"w:sz,attr,omitempty"`
	Space string `xml:"w:space,attr,omitempty"`
	Color string `xml:"w:color,attr,omitempty"`
}

type wCellMar struct {
	Top    *wWidth `xml:"w:top"`
	Left   *wWidth `xml:"w:left"`
	Bottom *wWidth `xml:"w:bottom"`
	Right  *wWidth `xml:"w:right"`
}

type wWidth struct {
	W    int    `xml:"w:w,attr"`
	Type string `xml:"w:type,attr"`
}

type wType struct {
	Type string `xml:"w:type,attr"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wIntVal struct {
	Val int `xml:"w:val,attr"`
}

type wStyles struct {
	XMLName     xml.Name     `xml:"w:styles"`
	NsW         string       `xml:"xmlns:w,attr"`
	DocDefaults wDocDefaults `xml:"w:docDefaults"`
	Styles      []wStyle     `xml:"w:style"`
}

type wDocDefaults struct {
	RPr wRPr `xml:"w:rPrDefault>w:rPr"`
	PPr wPPr `xml:"w:pPrDefault>w:pPr"`
}

type wStyle struct {
	Type    string    `xml:"w:type,attr"`
	Default string    `xml:"w:default,attr"`
	ID      string    `xml:"w:styleId,attr"`
	Name    wVal      `xml:"w:name"`
	QFormat *struct{} `xml:"w:qFormat"`
	TblPr   *wTblPr   `xml:"w:tblPr"`
}
