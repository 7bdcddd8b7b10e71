package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// renderHTMLToText converts an HTML body into a plain-text rendering that
// keeps link targets visible and drops scripting, styling and images, so the
// rule battery can inspect one uniform text form.
func renderHTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, img").Remove()

	// Keep anchor targets: "click here (https://example.com/login)".
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			s.SetText(href)
		} else {
			s.SetText(text + " (" + href + ")")
		}
	})

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return doc.Text(), nil
}
