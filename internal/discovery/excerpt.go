package discovery

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Excerpt strips noise from markup and keeps the forms when there are any,
// truncated to max bytes on a rune boundary.
func Excerpt(markup string, max int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return truncate(markup, max)
	}
	doc.Find("script, style, svg, noscript, iframe, link, meta, template").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("style")
	})

	var out string
	if forms := doc.Find("form"); forms.Length() > 0 {
		var b strings.Builder
		forms.Each(func(_ int, f *goquery.Selection) {
			if h, err := goquery.OuterHtml(f); err == nil {
				b.WriteString(h)
				b.WriteByte('\n')
			}
		})
		out = b.String()
	} else if h, err := doc.Find("body").Html(); err == nil {
		out = h
	}
	return truncate(collapseSpace(out), max)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
