package deadline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/llm"
	"github.com/grantdesk/backend/pkg/logger"
)

// DeadlineExtractor is the completion API surface the model-assisted
// strategy depends on.
type DeadlineExtractor interface {
	ExtractDeadlineItems(ctx context.Context, text string) ([]llm.DeadlineItem, error)
}

// ModelExtractor delegates extraction to the completion API and falls back
// to the regex strategy when the API fails or returns nothing usable.
type ModelExtractor struct {
	client   DeadlineExtractor
	fallback *RegexExtractor
}

func NewModelExtractor(client DeadlineExtractor, fallback *RegexExtractor) *ModelExtractor {
	return &ModelExtractor{client: client, fallback: fallback}
}

func (e *ModelExtractor) ExtractCandidateDates(ctx context.Context, text string) []DateMention {
	items, err := e.client.ExtractDeadlineItems(ctx, text)
	if err != nil {
		logger.Warn("Model extraction failed, falling back to pattern matching", zap.Error(err))
		return e.fallback.ExtractCandidateDates(ctx, text)
	}

	mentions := make([]DateMention, 0, len(items))
	for _, item := range items {
		label := item.Label
		if label == "" {
			label = "Deadline"
		}

		switch item.Type {
		case KindTask:
			start, err1 := time.Parse("2006-01-02", item.Start)
			end, err2 := time.Parse("2006-01-02", item.End)
			if err1 != nil || err2 != nil {
				continue
			}
			if end.Before(start) {
				start, end = end, start
			}
			mentions = append(mentions, DateMention{
				Label: label,
				Kind:  KindTask,
				Start: start,
				End:   end,
			})
		case KindMilestone:
			due, err := time.Parse("2006-01-02", item.Due)
			if err != nil {
				continue
			}
			mentions = append(mentions, DateMention{
				Label: label,
				Kind:  KindMilestone,
				Due:   due,
			})
		}
	}

	if len(mentions) == 0 {
		return e.fallback.ExtractCandidateDates(ctx, text)
	}
	return mentions
}
