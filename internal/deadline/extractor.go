package deadline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/pkg/logger"
)

// DateMention is a date-anchored phrase found in document text. A mention
// with both Start and End describes a task span; a single Due date
// describes a milestone.
type DateMention struct {
	Label string
	Kind  string // "task" or "milestone"
	Start time.Time
	End   time.Time
	Due   time.Time
}

const (
	KindTask      = "task"
	KindMilestone = "milestone"
)

// Extractor is the replaceable matching policy: regex-based or
// model-assisted, callers never care which.
type Extractor interface {
	ExtractCandidateDates(ctx context.Context, text string) []DateMention
}

var (
	isoDateRe  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	euDateRe   = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})[./](\d{4})\b`)
	monthDayRe = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December),?\s+(\d{4})\b`)
	spanRe     = regexp.MustCompile(`(?i)\b(from|between)\b.+\b(to|and|until|through)\b`)
	// A hyphen only separates two dates when surrounded by whitespace;
	// bare hyphens appear inside ISO dates. En and em dashes always do.
	dashSpanRe = regexp.MustCompile(`\s-\s|\s*[–—]\s*`)

	deadlineKeywords = []string{
		"deadline", "due", "submit", "submission", "deliver", "deliverable",
		"milestone", "report", "review", "meeting", "by ", "until",
		"no later than", "start", "end", "period", "complete", "payment",
	}
)

// RegexExtractor finds date mentions with sentence segmentation plus date
// patterns and deadline keywords. Dates follow the EU day-first convention
// for ambiguous numeric forms.
type RegexExtractor struct {
	MaxMentions int
	LabelMaxLen int
}

func NewRegexExtractor(maxMentions, labelMaxLen int) *RegexExtractor {
	if maxMentions <= 0 {
		maxMentions = 50
	}
	if labelMaxLen <= 0 {
		labelMaxLen = 120
	}
	return &RegexExtractor{MaxMentions: maxMentions, LabelMaxLen: labelMaxLen}
}

func (e *RegexExtractor) ExtractCandidateDates(ctx context.Context, text string) []DateMention {
	var mentions []DateMention

	for _, sentence := range splitSentences(text) {
		if len(mentions) >= e.MaxMentions {
			break
		}

		dates := findDates(sentence)
		if len(dates) == 0 {
			continue
		}
		if !containsDeadlineKeyword(sentence) {
			continue
		}

		label := e.label(sentence)

		if len(dates) >= 2 && looksLikeSpan(sentence) {
			start, end := dates[0], dates[1]
			if end.Before(start) {
				start, end = end, start
			}
			mentions = append(mentions, DateMention{
				Label: label,
				Kind:  KindTask,
				Start: start,
				End:   end,
			})
			continue
		}

		for _, d := range dates {
			if len(mentions) >= e.MaxMentions {
				break
			}
			mentions = append(mentions, DateMention{
				Label: label,
				Kind:  KindMilestone,
				Due:   d,
			})
		}
	}

	logger.Debug("Date mentions extracted", zap.Int("count", len(mentions)))

	return mentions
}

func (e *RegexExtractor) label(sentence string) string {
	label := strings.TrimSpace(whitespaceRe.ReplaceAllString(sentence, " "))
	if runes := []rune(label); len(runes) > e.LabelMaxLen {
		label = strings.TrimSpace(string(runes[:e.LabelMaxLen]))
	}
	if label == "" {
		label = "Deadline"
	}
	return label
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// splitSentences uses prose segmentation, falling back to newline splits
// when the tokenizer rejects the input.
func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed, splitting on newlines", zap.Error(err))
		return strings.Split(text, "\n")
	}

	sentences := doc.Sentences()
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, s.Text)
	}
	return out
}

func containsDeadlineKeyword(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, kw := range deadlineKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func looksLikeSpan(sentence string) bool {
	if spanRe.MatchString(sentence) {
		return true
	}
	// Two dates joined by a dash: "2025-01-01 – 2025-06-30".
	parts := dashSpanRe.Split(sentence, -1)
	if len(parts) >= 2 {
		datesLeft := findDates(parts[0])
		datesRight := findDates(strings.Join(parts[1:], " "))
		return len(datesLeft) > 0 && len(datesRight) > 0
	}
	return false
}

type datePos struct {
	date time.Time
	pos  int
}

// findDates returns every parseable date in the sentence, in order of
// appearance.
func findDates(sentence string) []time.Time {
	var found []datePos

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(sentence, -1) {
		raw := sentence[m[0]:m[1]]
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			found = append(found, datePos{d, m[0]})
		}
	}

	for _, m := range euDateRe.FindAllStringSubmatchIndex(sentence, -1) {
		raw := sentence[m[0]:m[1]]
		raw = strings.ReplaceAll(raw, ".", "/")
		if d, err := time.Parse("2/1/2006", raw); err == nil {
			found = append(found, datePos{d, m[0]})
		}
	}

	for _, m := range monthDayRe.FindAllStringSubmatchIndex(sentence, -1) {
		raw := normalizeOrdinal(sentence[m[0]:m[1]])
		for _, layout := range []string{"January 2, 2006", "January 2 2006"} {
			if d, err := time.Parse(layout, raw); err == nil {
				found = append(found, datePos{d, m[0]})
				break
			}
		}
	}

	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(sentence, -1) {
		raw := normalizeOrdinal(sentence[m[0]:m[1]])
		for _, layout := range []string{"2 January, 2006", "2 January 2006"} {
			if d, err := time.Parse(layout, raw); err == nil {
				found = append(found, datePos{d, m[0]})
				break
			}
		}
	}

	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].pos < found[j-1].pos; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	dates := make([]time.Time, 0, len(found))
	for _, f := range found {
		dates = append(dates, f.date)
	}
	return dates
}

var ordinalRe = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)`)

func normalizeOrdinal(s string) string {
	return ordinalRe.ReplaceAllString(s, "$1")
}
