package dreambot

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	LabelGenerate = "generate"
	LabelUpdate   = "update"
)

// Placeholders used in place of a prompt when a post has no label. They are sent to the generation service as-is.
const (
	PlaceholderRoot  = "Substring not found in the input string."
	PlaceholderReply = "Substring not found in the input string. parent"
)

var (
	promptRegexLk sync.Mutex
	promptRegexes = map[string]*regexp.Regexp{}
)

func promptRegex(labels []string) *regexp.Regexp {
	key := strings.Join(labels, "|")
	promptRegexLk.Lock()
	defer promptRegexLk.Unlock()
	if re, ok := promptRegexes[key]; ok {
		return re
	}
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	re := regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)\s*:\s*(.*)`)
	promptRegexes[key] = re
	return re
}

// ExtractPrompt returns the trimmed text after the first "<label>:" in text (label matched case-insensitively, at a word boundary).
//
// With no labels, "generate" is used. The bool is false when no label was found; an empty string with true means the label was present with nothing after it.
func ExtractPrompt(text string, labels ...string) (string, bool) {
	if len(labels) == 0 {
		labels = []string{LabelGenerate}
	}
	re := promptRegex(labels)
	for off := 0; off < len(text); {
		loc := re.FindStringSubmatchIndex(text[off:])
		if loc == nil {
			break
		}
		start := off + loc[0]
		if atWordStart(text, start) {
			return strings.TrimSpace(text[off+loc[2] : off+loc[3]]), true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		off = start + size
	}
	return "", false
}

// regexp's \b only treats ASCII as word characters; labels glued to any letter or digit do not count.
func atWordStart(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !(unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_')
}

// ExtractRootPrompt reads a "generate:" prompt, substituting PlaceholderRoot when absent.
func ExtractRootPrompt(text string) string {
	if p, ok := ExtractPrompt(text, LabelGenerate); ok {
		return p
	}
	return PlaceholderRoot
}

// ExtractReplyPrompt reads a "generate:" or "update:" prompt, substituting PlaceholderReply when absent.
func ExtractReplyPrompt(text string) string {
	if p, ok := ExtractPrompt(text, LabelGenerate, LabelUpdate); ok {
		return p
	}
	return PlaceholderReply
}
