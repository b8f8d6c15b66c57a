package model

import "time"

// QuestionImport is one question as read from an import file or written by export.
type QuestionImport struct {
	Content      string `json:"content" validate:"required"`
	Marks        int    `json:"marks" validate:"gt=0"`
	KLevel       string `json:"k_level" validate:"oneof=K1 K2 K3 K4 K5 K6"`
	Part         string `json:"part"`
	COLevel      string `json:"co_level" validate:"oneof=CO1 CO2 CO3 CO4 CO5"`
	HasFormula   bool   `json:"has_formula,omitempty"`
	HasOr        bool   `json:"has_or,omitempty"`
	OrContent    string `json:"or_content,omitempty"`
	OrMarks      int    `json:"or_marks,omitempty" validate:"omitempty,gt=0"`
	OrKLevel     string `json:"or_k_level,omitempty" validate:"omitempty,oneof=K1 K2 K3 K4 K5 K6"`
	OrPart       string `json:"or_part,omitempty"`
	OrCOLevel    string `json:"or_co_level,omitempty" validate:"omitempty,oneof=CO1 CO2 CO3 CO4 CO5"`
	OrHasFormula bool   `json:"or_has_formula,omitempty"`
}

// BankExport is the top-level JSON structure for a subject's question bank export.
type BankExport struct {
	Subject    Subject          `json:"subject"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Questions  []QuestionImport `json:"questions"`
}
