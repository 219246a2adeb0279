package paper

import (
	"context"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

// Local exposes a SQLStore through the narrow service interfaces used by
// paper assembly, for deployments where the paper service runs in-process.
type Local struct {
	Store *SQLStore
}

func (l Local) Create(ctx context.Context, f CreateFields) (int64, error) {
	return l.Store.CreatePaper(ctx, f)
}

func (l Local) Publish(ctx context.Context, id int64) error {
	return l.Store.PublishPaper(ctx, id)
}

func (l Local) BulkSave(ctx context.Context, qs []question.Question, createdBy int64) ([]int64, error) {
	return l.Store.SaveQuestions(ctx, qs, createdBy)
}

func (l Local) Attach(ctx context.Context, paperID, questionID int64, score float64) error {
	return l.Store.AttachQuestion(ctx, paperID, questionID, score)
}
