package reasoning

import (
	"regexp"
	"strings"
)

// actionAsideRe matches roleplay-style asides delimited by a single pair
// of asterisks, e.g. "*tilts head*" (spec.md §4.5 step 9).
var actionAsideRe = regexp.MustCompile(`\*[^*\n]+\*`)

// casualMarkdownRe strips markdown ATX headers ("# ", "## ", ...) and
// bullet markers ("- ", "* ") at the start of a line.
var casualMarkdownRe = regexp.MustCompile(`(?m)^(#{1,6}\s+|[-*]\s+)`)

// codeFenceRe finds fenced code blocks so Sanitise can leave their
// contents untouched even in casual channels.
var codeFenceRe = regexp.MustCompile("(?s)```.*?```")

// Sanitise strips roleplay-style action asides always, and — in casual
// channels only — markdown headers/bullets outside of code blocks,
// leaving code blocks alone everywhere (spec.md §4.5 step 9). Stripping
// can expose a new match (e.g. "**0*text*" leaves "*text*"), so the pass
// repeats until it changes nothing, which makes Sanitise idempotent:
// Sanitise(Sanitise(x, casual), casual) == Sanitise(x, casual).
func Sanitise(text string, casual bool) string {
	for {
		next := sanitiseOnce(text, casual)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitiseOnce(text string, casual bool) string {
	text = actionAsideRe.ReplaceAllString(text, "")
	text = collapseBlankRuns(text)
	if !casual {
		return strings.TrimSpace(text)
	}
	text = stripMarkdownOutsideFences(text)
	return strings.TrimSpace(text)
}

func stripMarkdownOutsideFences(text string) string {
	var out strings.Builder
	last := 0
	for _, loc := range codeFenceRe.FindAllStringIndex(text, -1) {
		out.WriteString(casualMarkdownRe.ReplaceAllString(text[last:loc[0]], ""))
		out.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	out.WriteString(casualMarkdownRe.ReplaceAllString(text[last:], ""))
	return out.String()
}

func collapseBlankRuns(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
