// Package mapper converts stored question records into the paper entry shape
// the assembler renders.
package mapper

import (
	"strconv"

	"github.com/pavelanni/qpaper/internal/model"
)

// FromRecord maps a stored record. The stored alternative is kept only when the
// record is flagged as having one and the alternative text is non-empty. It has
// no bank record of its own, so its SourceID stays zero.
func FromRecord(q model.Question) model.PaperQuestion {
	p := model.PaperQuestion{
		ID:         strconv.FormatInt(q.ID, 10),
		SourceID:   q.ID,
		Content:    q.Content,
		Marks:      q.Marks,
		KLevel:     q.KLevel,
		Part:       q.Part,
		COLevel:    q.COLevel,
		HasFormula: q.HasFormula,
		HasOr:      q.HasOr,
	}
	if q.HasOr {
		p.Alt = &model.Alternative{
			Content:    q.OrContent,
			Marks:      q.OrMarks,
			KLevel:     q.OrKLevel,
			Part:       q.OrPart,
			COLevel:    q.OrCOLevel,
			HasFormula: q.OrHasFormula,
		}
	}
	return Normalize(p)
}

// Normalize applies the alternative visibility rule to an entry: without an
// alternative text the entry has no alternative at all. Normalize is idempotent.
func Normalize(p model.PaperQuestion) model.PaperQuestion {
	if !p.HasOr || p.Alt == nil || p.Alt.Content == "" {
		p.HasOr = false
		p.Alt = nil
		return p
	}
	alt := *p.Alt
	p.Alt = &alt
	return p
}

// Map maps every record, preserving order.
func Map(records []model.Question) []model.PaperQuestion {
	out := make([]model.PaperQuestion, 0, len(records))
	for _, q := range records {
		out = append(out, FromRecord(q))
	}
	return out
}

// NormalizeAll normalizes every entry, preserving order.
func NormalizeAll(entries []model.PaperQuestion) []model.PaperQuestion {
	out := make([]model.PaperQuestion, 0, len(entries))
	for _, p := range entries {
		out = append(out, Normalize(p))
	}
	return out
}
