package service

import (
	"strings"
	"testing"

	"doc-extractor/internal/domain"
)

func blocksWithText(texts ...string) []domain.Block {
	blocks := make([]domain.Block, len(texts))
	for i, t := range texts {
		blocks[i] = domain.Block{BlockIndex: i, Text: t}
	}
	return blocks
}

func TestAssessLayoutQualityGoodPage(t *testing.T) {
	blocks := blocksWithText(
		"The quick brown fox jumps over the lazy dog.",
		"Pack my box with five dozen liquor jugs.",
	)
	q := AssessLayoutQuality(blocks, "# Heading\n\nSome markdown body.", DefaultQualityThresholds())

	if q.LowQuality {
		t.Errorf("expected good quality, got low quality: %s", q.Reason)
	}
	if q.EmptyBlocks != 0 {
		t.Errorf("expected 0 empty blocks, got %d", q.EmptyBlocks)
	}
}

func TestAssessLayoutQualityNoBlocksShortMarkdown(t *testing.T) {
	q := AssessLayoutQuality(nil, "abc", DefaultQualityThresholds())

	if !q.LowQuality {
		t.Fatal("expected low quality for empty page")
	}
	if q.Reason != "no blocks and markdown too short" {
		t.Errorf("unexpected reason: %s", q.Reason)
	}
}

func TestAssessLayoutQualityMarkdownExactlyAtThreshold(t *testing.T) {
	md := strings.Repeat("a", 30)
	q := AssessLayoutQuality(nil, md, DefaultQualityThresholds())

	if q.LowQuality {
		t.Errorf("markdown at the minimum length should pass, got low quality: %s", q.Reason)
	}
}

func TestAssessLayoutQualityTotalTextTooShort(t *testing.T) {
	q := AssessLayoutQuality(blocksWithText("hi", "ok"), "", DefaultQualityThresholds())

	if !q.LowQuality {
		t.Fatal("expected low quality for tiny total text")
	}
	if q.Reason != "total text too short" {
		t.Errorf("unexpected reason: %s", q.Reason)
	}
}

func TestAssessLayoutQualityTooManyEmptyBlocks(t *testing.T) {
	// 7 of 10 empty: ratio 0.7 exceeds the 0.6 cap even with enough text.
	blocks := blocksWithText(
		"This block carries plenty of readable text for the total.",
		"Another block with a healthy amount of text in it too.",
		"And a third one to keep the average up high enough.",
		"", "", "", "", "  ", "\t", "",
	)
	q := AssessLayoutQuality(blocks, "", DefaultQualityThresholds())

	if !q.LowQuality {
		t.Fatal("expected low quality from empty block ratio")
	}
	if q.Reason != "too many empty blocks" {
		t.Errorf("unexpected reason: %s", q.Reason)
	}
	if q.EmptyBlocks != 7 {
		t.Errorf("expected 7 empty blocks, got %d", q.EmptyBlocks)
	}
}

func TestAssessLayoutQualitySparseBlocks(t *testing.T) {
	// Half the blocks empty and short text: avg below 8 with ratio above 0.4.
	blocks := blocksWithText("seven77", "seven77", "seven77", "", "", "")
	md := strings.Repeat("b", 40)
	q := AssessLayoutQuality(blocks, md, DefaultQualityThresholds())

	if !q.LowQuality {
		t.Fatal("expected low quality for sparse blocks")
	}
	if q.Reason != "blocks too sparse" {
		t.Errorf("unexpected reason: %s", q.Reason)
	}
}

func TestAssessLayoutQualityEmptyRatioAtBoundary(t *testing.T) {
	// Exactly 0.6 empty does not exceed the cap.
	blocks := blocksWithText(
		"This block carries plenty of readable text for the total count.",
		"Another block with a healthy amount of words inside it as well.",
		"", "", "",
	)
	q := AssessLayoutQuality(blocks, "", DefaultQualityThresholds())

	if q.LowQuality {
		t.Errorf("ratio at the cap should pass, got low quality: %s", q.Reason)
	}
}
