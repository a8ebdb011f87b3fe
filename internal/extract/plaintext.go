package extract

import (
	"regexp"
	"strings"
)

var (
	mdHeadingRe = regexp.MustCompile(`#{1,6}\s+`)
	mdBoldRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	mdItalicRe  = regexp.MustCompile(`\*(.*?)\*`)
	mdCodeRe    = regexp.MustCompile("`(.*?)`")
	mdLinkRe    = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
)

// PlainText strips common markdown formatting, leaving the readable text.
func PlainText(md string) string {
	out := mdHeadingRe.ReplaceAllString(md, "")
	out = mdBoldRe.ReplaceAllString(out, "$1")
	out = mdItalicRe.ReplaceAllString(out, "$1")
	out = mdCodeRe.ReplaceAllString(out, "$1")
	out = mdLinkRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
