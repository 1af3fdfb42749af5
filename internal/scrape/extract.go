package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Extractor turns an HTML page into main-content text and a title.
type Extractor interface {
	Extract(html string) (text, title string, err error)
}

// noiseSelector matches boilerplate removed before text extraction.
const noiseSelector = "nav, footer, header, aside, form, script, style, noscript, iframe, svg, template, " +
	".ad, .ads, .advertisement, .sidebar, .cookie-banner, .popup, .share, .social, " +
	".comments, #comments, .comment, [role='navigation'], [role='banner'], [role='contentinfo'], [aria-hidden='true']"

// blockSelector matches elements that end a line of text.
const blockSelector = "p, div, section, article, li, tr, h1, h2, h3, h4, h5, h6, blockquote, pre, dd, dt, br"

// DefaultContentSelectors are tried in order to locate the main content.
var DefaultContentSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".content",
	"#content",
	".main-content",
	"#main-content",
	".post",
}

// HTMLExtractor extracts main content with goquery.
type HTMLExtractor struct {
	ContentSelectors []string
	// MinContentChars is the shortest main-content match accepted before
	// falling back to the whole body.
	MinContentChars int
}

// NewHTMLExtractor returns an extractor with the default selectors.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{ContentSelectors: DefaultContentSelectors, MinContentChars: 200}
}

// Extract implements Extractor.
func (e *HTMLExtractor) Extract(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: parse html")
	}

	title := pageTitle(doc)

	doc.Find(noiseSelector).Remove()
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var text string
	for _, sel := range e.ContentSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			candidate := cleanWhitespace(s.First().Text())
			if len(candidate) >= e.MinContentChars {
				text = candidate
				break
			}
		}
	}
	if text == "" {
		text = cleanWhitespace(doc.Find("body").Text())
	}
	return text, title, nil
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return collapseSpaces(t)
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return collapseSpaces(t)
	}
	return collapseSpaces(doc.Find("h1").First().Text())
}

// cleanWhitespace trims each line, collapses runs of spaces and drops empty
// lines.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = collapseSpaces(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
