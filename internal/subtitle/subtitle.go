// Package subtitle turns a captured subtitle cue into the plain text that
// gets translated.
package subtitle

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRun   = regexp.MustCompile(`[^\S\n]+`)
	newlineRun = regexp.MustCompile(`\s*\n\s*`)
	markupTag  = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)
	entityRef  = regexp.MustCompile(`&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)
)

// Clean strips cue markup (<i>, <b>, <font>, <ruby> and friends) and
// normalizes whitespace. Line breaks from <br> and from the text itself are
// kept as single newlines. Text without a complete tag or entity, such as
// "if a<b then stop", is only trimmed and whitespace-collapsed.
func Clean(raw string) string {
	if !markupTag.MatchString(raw) && !entityRef.MatchString(raw) {
		return collapse(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapse(raw)
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("rt, rp, script, style").Remove()
	return collapse(doc.Find("body").Text())
}

func collapse(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRun.ReplaceAllString(s, " ")
	s = newlineRun.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
