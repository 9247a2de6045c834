package extractionengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/quarrylabs/quarry/internal/models"
)

// ocrBudget caps one document's rasterize-and-recognize run. Without a bound
// a pathological PDF can stall the consumer instance indefinitely.
const ocrBudget = 3 * time.Minute

// ocr is the last-resort strategy: rasterize every page and run text
// recognition per page, appending results in page order.
func (e *PDFExtractor) ocr(data []byte) ([]models.TextBlock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ocrBudget)
	defer cancel()
	return ocrPages(ctx, data)
}

func ocrPages(ctx context.Context, data []byte) ([]models.TextBlock, error) {
	dir, err := os.MkdirTemp("", "quarry-ocr-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, err
	}

	// pdftoppm ships with poppler-utils, alongside the pdftotext binary the
	// layout-reconstruction strategy already requires.
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "150", src, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %v: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errors.New("pdftoppm produced no page images")
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(pages)

	client := gosseract.NewClient()
	defer client.Close()

	var blocks []models.TextBlock
	for n, img := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ocr budget exhausted after %d pages: %w", n, err)
		}
		if err := client.SetImage(img); err != nil {
			return nil, fmt.Errorf("page %d: %w", n+1, err)
		}
		text, err := client.Text()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n+1, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		blocks = append(blocks, models.TextBlock{
			Type:     "Text",
			Text:     text,
			Metadata: map[string]string{"page": strconv.Itoa(n + 1)},
		})
	}
	if len(blocks) == 0 {
		return nil, errors.New("ocr recognized no text")
	}
	return blocks, nil
}
