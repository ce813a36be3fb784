package reformat

import (
	"context"

	"github.com/mgpai22/cutline/internal/caption"
)

// Local reformats without a model: one sentence per caption, wrapped to
// MaxChars.
type Local struct {
	MaxChars int
}

func NewLocal(maxChars int) *Local {
	return &Local{MaxChars: maxChars}
}

func (l *Local) Reformat(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var lines []string
	for _, s := range SplitSentences(text) {
		lines = append(lines, caption.WrapLines(s, l.MaxChars)...)
	}
	return lines, nil
}
