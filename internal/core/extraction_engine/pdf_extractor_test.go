package extractionengine

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/models"
)

func stubStrategy(name string, blocks []models.TextBlock, err error, reached *bool) pdfStrategy {
	return pdfStrategy{name: name, run: func([]byte) ([]models.TextBlock, error) {
		if reached != nil {
			*reached = true
		}
		return blocks, err
	}}
}

func TestExtract_FirstUsableStrategyShortCircuits(t *testing.T) {
	want := []models.TextBlock{{Type: "paragraph", Text: "hello"}}

	var laterReached bool
	e := &PDFExtractor{strategies: []pdfStrategy{
		stubStrategy("structured", want, nil, nil),
		stubStrategy("later", nil, errors.New("must not run"), &laterReached),
	}}

	blocks := e.Extract([]byte("pdf"))
	assert.Equal(t, want, blocks)
	assert.False(t, laterReached, "later strategies must not be attempted")
}

func TestExtract_EmptyOutputFallsThrough(t *testing.T) {
	want := []models.TextBlock{{Type: "Text", Text: "recovered"}}

	var secondReached bool
	e := &PDFExtractor{strategies: []pdfStrategy{
		stubStrategy("empty", nil, nil, nil),
		stubStrategy("next", want, nil, &secondReached),
	}}

	blocks := e.Extract([]byte("pdf"))
	assert.True(t, secondReached)
	assert.Equal(t, want, blocks)
}

func TestExtract_ErrorFallsThrough(t *testing.T) {
	want := []models.TextBlock{{Type: "Text", Text: "recovered"}}

	e := &PDFExtractor{strategies: []pdfStrategy{
		stubStrategy("broken", nil, errors.New("parse failed"), nil),
		stubStrategy("next", want, nil, nil),
	}}

	assert.Equal(t, want, e.Extract([]byte("pdf")))
}

func TestExtract_PanicIsContained(t *testing.T) {
	want := []models.TextBlock{{Type: "Text", Text: "recovered"}}

	e := &PDFExtractor{strategies: []pdfStrategy{
		{name: "panics", run: func([]byte) ([]models.TextBlock, error) { panic("malformed xref") }},
		stubStrategy("next", want, nil, nil),
	}}

	assert.Equal(t, want, e.Extract([]byte("pdf")))
}

func TestExtract_TotalFailureYieldsErrorBlock(t *testing.T) {
	e := &PDFExtractor{strategies: []pdfStrategy{
		stubStrategy("a", nil, errors.New("no text layer"), nil),
		stubStrategy("b", nil, nil, nil),
		stubStrategy("c", nil, errors.New("ocr engine missing"), nil),
	}}

	blocks := e.Extract([]byte("pdf"))
	require.Len(t, blocks, 1)
	assert.Equal(t, models.BlockTypeError, blocks[0].Type)
	assert.Contains(t, blocks[0].Text, "ocr engine missing")
}

func TestExtract_GarbageInputNeverPanics(t *testing.T) {
	e := NewPDFExtractor()

	blocks := e.Extract([]byte("this is not a pdf at all"))
	require.NotEmpty(t, blocks)
	assert.Equal(t, models.BlockTypeError, blocks[0].Type)
}

func TestMeetsTextFloor(t *testing.T) {
	assert.False(t, meetsTextFloor(""))
	assert.False(t, meetsTextFloor("   \n\t  "))
	assert.False(t, meetsTextFloor("short scan noise"))
	assert.False(t, meetsTextFloor(strings.Repeat("x", 99)))
	assert.True(t, meetsTextFloor(strings.Repeat("x", 100)))
	// surrounding whitespace does not count toward the floor
	assert.False(t, meetsTextFloor("  "+strings.Repeat("x", 99)+"  "))
}

func TestListRowDetection(t *testing.T) {
	assert.True(t, listRowRe.MatchString("- first item"))
	assert.True(t, listRowRe.MatchString("• bullet"))
	assert.True(t, listRowRe.MatchString("1. numbered"))
	assert.True(t, listRowRe.MatchString("2) numbered"))
	assert.False(t, listRowRe.MatchString("plain sentence"))
	assert.False(t, listRowRe.MatchString("-nodash spacing"))
}
