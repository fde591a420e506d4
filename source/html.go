package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	drawAnchorPattern = regexp.MustCompile(`^Draw\s+(\d+)\s+(\d{1,2}\s+\w+,\s+\d{4})`)
	numberPattern     = regexp.MustCompile(`\b\d+\b`)
)

// archiveURL returns the archive page for one year
func (c *Client) archiveURL(year int) string {
	return fmt.Sprintf("%s/powerball/results-archive-%d", c.cfg.HTMLBase, year)
}

// pastResultsURL returns the page listing roughly the last six months of draws
func (c *Client) pastResultsURL() string {
	return c.cfg.HTMLBase + "/powerball/past-results"
}

// fetchHTML downloads and parses one results page
func (c *Client) fetchHTML(ctx context.Context, pageURL string, diag *Diagnostics) ([]RawEntry, error) {
	diag.HTMLURL = pageURL
	payload, status, err := c.do(ctx, c.htmlBreaker, diag, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		return req, nil
	})
	diag.HTMLStatus = status
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html from %s: %w", pageURL, err)
	}
	return parseResultsPage(doc, pageURL, diag), nil
}

// parseResultsPage finds every "Draw <n> <date>" anchor and the numbers that follow it.
// Numbers come from the first <ul> after the anchor, or from the digits of the
// anchor's parent when no list follows. Anchors without exactly eight numbers are skipped.
func parseResultsPage(doc *html.Node, pageURL string, diag *Diagnostics) []RawEntry {
	var anchors []*html.Node
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.A:
			anchors = append(anchors, n)
		case atom.Ul:
			diag.Lists++
		case atom.Li:
			diag.ListItems++
		}
	}
	diag.Anchors = len(anchors)

	var entries []RawEntry
	for _, a := range anchors {
		text := strings.TrimSpace(textContent(a, ""))
		m := drawAnchorPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		diag.DrawAnchors++

		drawNumber, err := strconv.Atoi(m[1])
		if err != nil {
			diag.Skipped++
			continue
		}

		var numbers []int
		if ul := nextElement(a, atom.Ul); ul != nil {
			numbers = listNumbers(ul)
		} else if a.Parent != nil {
			numbers = leadingNumbers(textOutside(a.Parent, a), htmlNumberCount)
		}
		if len(numbers) != htmlNumberCount {
			diag.Skipped++
			continue
		}

		entries = append(entries, HTMLEntry{
			DrawNumber: drawNumber,
			DateText:   m[2],
			Numbers:    numbers,
			URL:        pageURL,
		})
	}
	return entries
}

// textContent concatenates the text below n, joining text nodes with sep
func textContent(n *html.Node, sep string) string {
	var parts []string
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			if t := strings.TrimSpace(d.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, sep)
}

// textOutside returns the text below n that is not below skip
func textOutside(n, skip *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c == skip {
				continue
			}
			if c.Type == html.TextNode {
				if t := strings.TrimSpace(c.Data); t != "" {
					parts = append(parts, t)
				}
			}
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// nextElement returns the first element with the given atom that follows n in document order,
// excluding n's own descendants
func nextElement(n *html.Node, want atom.Atom) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		for sib := cur.NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type == html.ElementNode && sib.DataAtom == want {
				return sib
			}
			for d := range sib.Descendants() {
				if d.Type == html.ElementNode && d.DataAtom == want {
					return d
				}
			}
		}
	}
	return nil
}

// listNumbers reads the integer items of a list, ignoring non-numeric items
func listNumbers(ul *html.Node) []int {
	var numbers []int
	for d := range ul.Descendants() {
		if d.Type != html.ElementNode || d.DataAtom != atom.Li {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(textContent(d, ""))); err == nil {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// leadingNumbers returns at most limit integers found in text
func leadingNumbers(text string, limit int) []int {
	var numbers []int
	for _, match := range numberPattern.FindAllString(text, -1) {
		if len(numbers) == limit {
			break
		}
		if n, err := strconv.Atoi(match); err == nil {
			numbers = append(numbers, n)
		}
	}
	return numbers
}
