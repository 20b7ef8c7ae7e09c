package adapter

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	htmlTagRe    = regexp.MustCompile(`(?i)<(html|body|div|p|br|span|table|a|b|i|strong|em)[\s/>]`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

func looksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}

// htmlToText renders an HTML body as plain text for terminal display.
func htmlToText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, tr, li, h1, h2, h3, h4, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if ok && href != "" && href != text && !strings.HasPrefix(href, "mailto:") {
			s.AppendHtml(html.EscapeString(" (" + href + ")"))
		}
	})

	lines := strings.Split(doc.Text(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	text := strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
