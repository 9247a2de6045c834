package extractionengine

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/quarrylabs/quarry/internal/models"
)

// minTextLayerChars is the usable-output floor for the text-layer strategies.
// Scanned or degraded PDFs often yield a few characters of noise from the
// text layer; anything below this falls through toward OCR.
const minTextLayerChars = 100

type pdfStrategy struct {
	name string
	run  func(data []byte) ([]models.TextBlock, error)
}

// PDFExtractor turns raw PDF bytes into an ordered list of text blocks by
// trying strategies in decreasing order of fidelity. Extraction never fails:
// if every strategy errors or comes up empty, the result is a single block of
// type "error" carrying the failure message, so the pipeline always has a
// document to persist.
type PDFExtractor struct {
	strategies []pdfStrategy
}

func NewPDFExtractor() *PDFExtractor {
	e := &PDFExtractor{}
	e.strategies = []pdfStrategy{
		{name: "structured-partition", run: e.structuredPartition},
		{name: "text-layer", run: e.textLayer},
		{name: "layout-reconstruction", run: e.layoutReconstruction},
		{name: "ocr", run: e.ocr},
	}
	return e
}

// Extract runs the fallback chain. Each strategy is attempted only if the
// previous one produced no usable output; the first non-empty result wins.
func (e *PDFExtractor) Extract(data []byte) []models.TextBlock {
	var lastErr error
	for _, s := range e.strategies {
		blocks, err := runPDFStrategy(s, data)
		if err != nil {
			log.Printf("pdf extractor: strategy %s failed: %v", s.name, err)
			lastErr = fmt.Errorf("%s: %v", s.name, err)
			continue
		}
		if len(blocks) > 0 {
			return blocks
		}
	}

	msg := "pdf extraction failed: no strategy produced output"
	if lastErr != nil {
		msg = fmt.Sprintf("pdf extraction failed: %v", lastErr)
	}
	return []models.TextBlock{{Type: models.BlockTypeError, Text: msg}}
}

// runPDFStrategy contains panics from the underlying parsers; a panicking
// strategy counts as a failed one, not a failed extraction.
func runPDFStrategy(s pdfStrategy, data []byte) (blocks []models.TextBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.run(data)
}

var listRowRe = regexp.MustCompile(`^([-*•‣▪]|\d+[.)])\s+`)

// structuredPartition decomposes the document into typed blocks using row and
// font-size layout information, keeping page numbers as metadata. This is the
// highest-fidelity strategy: any output short-circuits the chain.
func (e *PDFExtractor) structuredPartition(data []byte) ([]models.TextBlock, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var blocks []models.TextBlock
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			log.Printf("pdf extractor: page %d rows: %v", pageNum, err)
			continue
		}

		bodySize := dominantFontSize(rows)
		meta := map[string]string{"page": strconv.Itoa(pageNum)}

		var para []string
		flush := func() {
			if len(para) == 0 {
				return
			}
			blocks = append(blocks, models.TextBlock{
				Type:     "paragraph",
				Text:     strings.Join(para, " "),
				Metadata: meta,
			})
			para = nil
		}

		for _, row := range rows {
			text, size := rowText(row)
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			switch {
			case listRowRe.MatchString(text):
				flush()
				blocks = append(blocks, models.TextBlock{Type: "list_item", Text: text, Metadata: meta})
			case bodySize > 0 && size > bodySize*1.2:
				flush()
				blocks = append(blocks, models.TextBlock{Type: "heading", Text: text, Metadata: meta})
			default:
				para = append(para, text)
			}
		}
		flush()
	}
	return blocks, nil
}

// textLayer concatenates the embedded text layer across all pages. Below the
// character floor the result is discarded so the chain keeps falling through.
func (e *PDFExtractor) textLayer(data []byte) ([]models.TextBlock, error) {
	text, err := e.textLayerText(data)
	if err != nil {
		return nil, err
	}
	if !meetsTextFloor(text) {
		return nil, nil
	}
	return []models.TextBlock{{Type: "Text", Text: text}}, nil
}

// layoutReconstruction runs a second, different text-layer reader (pdftotext
// via docconv) and appends its output to the direct text-layer result. Some
// documents the direct reader misreads come out fine here.
func (e *PDFExtractor) layoutReconstruction(data []byte) ([]models.TextBlock, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return nil, err
	}

	prior, _ := e.textLayerText(data)
	combined := strings.TrimSpace(strings.TrimSpace(prior) + "\n" + res.Body)
	if !meetsTextFloor(combined) {
		return nil, nil
	}
	return []models.TextBlock{{Type: "Text", Text: combined}}, nil
}

// meetsTextFloor reports whether stripped text clears the usable-output
// floor shared by the text-layer strategies.
func meetsTextFloor(s string) bool {
	return len(strings.TrimSpace(s)) >= minTextLayerChars
}

func (e *PDFExtractor) textLayerText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	rd, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func rowText(row *pdf.Row) (string, float64) {
	var sb strings.Builder
	var size float64
	for _, word := range row.Content {
		sb.WriteString(word.S)
		if word.FontSize > size {
			size = word.FontSize
		}
	}
	return sb.String(), size
}

// dominantFontSize returns the most frequent font size on the page, which
// stands in for the body text size when classifying headings.
func dominantFontSize(rows pdf.Rows) float64 {
	counts := make(map[float64]int)
	for _, row := range rows {
		for _, word := range row.Content {
			if word.FontSize > 0 {
				counts[word.FontSize]++
			}
		}
	}
	var best float64
	var bestCount int
	for size, n := range counts {
		if n > bestCount {
			best, bestCount = size, n
		}
	}
	return best
}
