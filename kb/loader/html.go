package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/sweetpotato0/ticketpilot/kb"
)

// LoadHTMLFile parses a help-center HTML article into a knowledge base
// document. The title comes from the first h1, falling back to the filename.
func LoadHTMLFile(path string) (kb.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return kb.Document{}, fmt.Errorf("read article %s: %w", path, err)
	}
	return LoadHTML(string(raw), filepath.Base(path))
}

// LoadHTML converts an HTML article body into a plain-text document.
func LoadHTML(html, fallbackTitle string) (kb.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return kb.Document{}, fmt.Errorf("parse article html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = fallbackTitle
	}

	var out []string
	doc.Find("h1,h2,h3,h4,p,li,pre,code").Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+strings.TrimSpace(s.Text()))
		case "h2":
			out = append(out, "## "+strings.TrimSpace(s.Text()))
		case "h3", "h4":
			out = append(out, "### "+strings.TrimSpace(s.Text()))
		case "p":
			out = append(out, strings.TrimSpace(s.Text()))
		case "li":
			out = append(out, "- "+strings.TrimSpace(s.Text()))
		case "pre", "code":
			out = append(out, "```\n"+strings.TrimSpace(s.Text())+"\n```")
		}
	})

	content := cleanText(strings.Join(out, "\n\n"))
	if content == "" {
		return kb.Document{}, fmt.Errorf("article %q has no extractable text", fallbackTitle)
	}

	return kb.Document{
		Title:   title,
		Content: content,
		Metadata: map[string]any{
			"source": fallbackTitle,
			"format": "html",
		},
	}, nil
}

var (
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
)

func cleanText(text string) string {
	if text == "" {
		return ""
	}

	// remove control chars except newline
	b := strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	b = reSpaces.ReplaceAllString(b, " ")
	b = reNewlines.ReplaceAllString(b, "\n\n")

	return strings.TrimSpace(b)
}
