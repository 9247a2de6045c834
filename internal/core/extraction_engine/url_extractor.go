package extractionengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	goose "github.com/advancedlogic/GoOse"

	"github.com/quarrylabs/quarry/internal/models"
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "quarry-extractor/1.0 (+https://github.com/quarrylabs/quarry)"
)

// sectionTags are the tag categories a cleaned article is split on. One block
// is emitted per non-empty section, typed by its tag name, so downstream
// stages keep the document structure.
const sectionTags = "h1, h2, h3, h4, h5, h6, p, ul, ol, li, table"

// URLExtractor turns a URL into a structured document. The primary strategy
// is boilerplate-removing article extraction; when it yields nothing, a raw
// fetch with script/style stripping is the fallback. Failures are reported in
// the result, never raised, with the kind distinguishing retriable network
// problems from permanent extraction problems.
type URLExtractor struct {
	client  *http.Client
	primary func(rawURL string) ([]models.TextBlock, error)
}

func NewURLExtractor() *URLExtractor {
	e := &URLExtractor{client: &http.Client{Timeout: fetchTimeout}}
	e.primary = e.gooseExtract
	return e
}

func (e *URLExtractor) Extract(ctx context.Context, rawURL string) models.URLExtraction {
	u := NormalizeURL(rawURL)

	sections, err := e.primary(u)
	if err != nil {
		log.Printf("url extractor: primary strategy failed for %s: %v", u, err)
	}
	if len(sections) > 0 {
		return models.URLExtraction{URL: u, Sections: sections}
	}

	sections, err = e.rawFetch(ctx, u)
	if err != nil {
		return models.URLExtraction{URL: u, Error: err.Error(), ErrKind: classifyFetchErr(err)}
	}
	return models.URLExtraction{URL: u, Sections: sections}
}

// NormalizeURL prepends https:// when the URL carries no scheme.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		return "https://" + rawURL
	}
	return rawURL
}

// gooseExtract fetches the page and strips navigation, ads, scripts and
// styles. A recovered content node is split into per-tag sections; cleaned
// text without a node becomes a single block.
func (e *URLExtractor) gooseExtract(rawURL string) ([]models.TextBlock, error) {
	g := goose.New()
	article, err := g.ExtractFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, nil
	}
	if article.TopNode != nil {
		if blocks := splitSections(article.TopNode); len(blocks) > 0 {
			return blocks, nil
		}
	}
	if text := strings.TrimSpace(article.CleanedText); text != "" {
		return []models.TextBlock{{Type: "text", Text: text}}, nil
	}
	return nil, nil
}

func splitSections(node *goquery.Selection) []models.TextBlock {
	var blocks []models.TextBlock
	node.Find(sectionTags).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		blocks = append(blocks, models.TextBlock{Type: goquery.NodeName(s), Text: text})
	})
	return blocks
}

// rawFetch is the fallback: plain GET, drop script/style, keep the visible
// text as one block.
func (e *URLExtractor) rawFetch(ctx context.Context, rawURL string) ([]models.TextBlock, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript").Remove()

	text := collapseWhitespace(doc.Text())
	if text == "" {
		return nil, errors.New("no visible text in page")
	}
	return []models.TextBlock{{Type: "text", Text: text}}, nil
}

func collapseWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// classifyFetchErr sorts fetch failures into the result error kinds: timeouts
// and transport errors are retriable, everything else is an extraction
// failure.
func classifyFetchErr(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return models.URLErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.URLErrTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return models.URLErrNetwork
	}
	return models.URLErrExtraction
}
