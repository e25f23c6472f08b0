package service

import (
	"strings"

	"doc-extractor/internal/domain"
)

// QualityThresholds parameterize the low-quality verdict. Defaults match the
// tuned production values; see DefaultQualityThresholds.
type QualityThresholds struct {
	MinDocChars           int
	MaxEmptyBlockRatio    float64
	MinAvgCharsPerBlock   float64
	SparseEmptyBlockRatio float64
}

// DefaultQualityThresholds returns the stock thresholds.
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinDocChars:           30,
		MaxEmptyBlockRatio:    0.6,
		MinAvgCharsPerBlock:   8,
		SparseEmptyBlockRatio: 0.4,
	}
}

// ThresholdsFromTuning lifts the configured tunables into QualityThresholds.
func ThresholdsFromTuning(t domain.ExtractionTuning) QualityThresholds {
	return QualityThresholds{
		MinDocChars:           t.MinDocChars,
		MaxEmptyBlockRatio:    t.MaxEmptyBlockRatio,
		MinAvgCharsPerBlock:   t.MinAvgCharsPerBlock,
		SparseEmptyBlockRatio: t.SparseEmptyBlockRatio,
	}
}

// LayoutQuality holds block/markdown statistics and the low-quality verdict.
type LayoutQuality struct {
	TotalTextChars   int
	EmptyBlocks      int
	AvgCharsPerBlock float64
	EmptyBlockRatio  float64
	LowQuality       bool
	Reason           string
}

// AssessLayoutQuality judges whether a layout provider's output is too sparse
// to trust. Pure function over the page's blocks and markdown.
func AssessLayoutQuality(blocks []domain.Block, markdown string, t QualityThresholds) LayoutQuality {
	var q LayoutQuality

	for _, b := range blocks {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			q.EmptyBlocks++
			continue
		}
		q.TotalTextChars += len(text)
	}

	if len(blocks) > 0 {
		q.AvgCharsPerBlock = float64(q.TotalTextChars) / float64(len(blocks))
		q.EmptyBlockRatio = float64(q.EmptyBlocks) / float64(len(blocks))
	}

	mdLen := len(strings.TrimSpace(markdown))

	switch {
	case len(blocks) == 0 && mdLen < t.MinDocChars:
		q.LowQuality = true
		q.Reason = "no blocks and markdown too short"
	case q.TotalTextChars+mdLen < t.MinDocChars:
		q.LowQuality = true
		q.Reason = "total text too short"
	case q.EmptyBlockRatio > t.MaxEmptyBlockRatio:
		q.LowQuality = true
		q.Reason = "too many empty blocks"
	case q.AvgCharsPerBlock < t.MinAvgCharsPerBlock && q.EmptyBlockRatio > t.SparseEmptyBlockRatio:
		q.LowQuality = true
		q.Reason = "blocks too sparse"
	}

	return q
}
