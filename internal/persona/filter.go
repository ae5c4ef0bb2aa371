package persona

import (
	"log/slog"
	"strings"
)

// denylist holds identity-revealing terms that must never reach the user.
// Matched case-insensitively as substrings of the normalized reply.
var denylist = []string{
	"ذكاء اصطناعي",
	"نموذج",
	"روبوت",
	"برنامج",
	"نظام",
	"openai",
	"chatgpt",
	"openrouter",
}

// FilterReply scrubs a generated reply at sentence granularity: sentences
// containing a denylisted term are dropped and the canned identity statement
// is prefixed once unless a surviving sentence already carries it. A reply
// reduced to nothing becomes the identity statement alone.
func FilterReply(text string) string {
	if text == "" {
		return text
	}
	if !containsDenylisted(text) {
		return text
	}

	sentences := splitSentences(text)
	kept := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if containsDenylisted(s) {
			continue
		}
		kept = append(kept, s)
	}

	slog.Debug("filtered generated reply",
		"sentences", len(sentences),
		"dropped", len(sentences)-len(kept),
	)

	joined := strings.TrimSpace(strings.Join(kept, " "))
	if joined == "" {
		return IdentityReply
	}
	if !strings.Contains(joined, IdentityReply) {
		joined = IdentityReply + " " + joined
	}
	return joined
}

func containsDenylisted(s string) bool {
	lower := strings.ToLower(s)
	for _, term := range denylist {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// terminal punctuation ending a sentence. Covers Latin and Arabic marks.
func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '؟', '۔', '…':
		return true
	}
	return false
}

// splitSentences cuts text after terminal punctuation or newlines, keeping
// the punctuation attached to its sentence. Whitespace-only fragments are
// discarded.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if isTerminal(r) {
			// keep runs like "..." or "?!" together
			if i+1 < len(runes) && isTerminal(runes[i+1]) {
				continue
			}
			flush()
		}
	}
	flush()
	return out
}
