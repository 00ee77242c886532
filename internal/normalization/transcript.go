// Package normalization cleans collaborator transcripts before they are stored.
package normalization

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer is deterministic and order preserving: the same input always
// yields the same output and surviving tokens keep their relative order.
type Normalizer struct {
	stopwords map[string]struct{}
}

// New builds a Normalizer that removes the given filler tokens as whole words.
func New(stopwords []string) *Normalizer {
	n := &Normalizer{stopwords: make(map[string]struct{}, len(stopwords))}
	for _, w := range stopwords {
		w = norm.NFC.String(strings.TrimSpace(w))
		if w != "" {
			n.stopwords[w] = struct{}{}
		}
	}
	return n
}

// Normalize applies NFC, drops control characters, collapses whitespace
// within each line, drops empty lines and removes stopword tokens.
// A leading "speaker:" label on a line is kept even when the rest is filtered.
func (n *Normalizer) Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = stripControl(line)
		tokens := strings.Fields(line)
		kept := tokens[:0]
		for i, tok := range tokens {
			if i == 0 && strings.HasSuffix(tok, ":") {
				kept = append(kept, tok)
				continue
			}
			if n.isStopword(tok) {
				continue
			}
			kept = append(kept, tok)
		}
		if len(kept) == 0 || (len(kept) == 1 && strings.HasSuffix(kept[0], ":") && len(tokens) > 1) {
			continue
		}
		out = append(out, strings.Join(kept, " "))
	}
	return strings.Join(out, "\n")
}

func (n *Normalizer) isStopword(tok string) bool {
	if n == nil || len(n.stopwords) == 0 {
		return false
	}
	_, ok := n.stopwords[strings.TrimFunc(tok, unicode.IsPunct)]
	return ok
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case unicode.IsControl(r), r == '\ufeff', r == '\u200b':
			return -1
		default:
			return r
		}
	}, s)
}
