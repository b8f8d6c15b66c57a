package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/qpaper/internal/importer"
	"github.com/pavelanni/qpaper/internal/model"
)

// ExportBank builds the export document for a subject's question bank,
// in the record format the importer reads back.
func (s *Store) ExportBank(ctx context.Context, subjectID int64) (*model.BankExport, error) {
	subj, err := s.SubjectByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("get subject %d: %w", subjectID, err)
	}
	if subj == nil {
		return nil, fmt.Errorf("subject %d: %w", subjectID, ErrNotFound)
	}

	qs, err := s.QuestionsForSubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	records := make([]model.QuestionImport, 0, len(qs))
	for _, q := range qs {
		records = append(records, importer.FromQuestion(q))
	}

	return &model.BankExport{
		Subject:    *subj,
		ExportedAt: time.Now().UTC(),
		Count:      len(records),
		Questions:  records,
	}, nil
}
