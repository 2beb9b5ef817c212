package speech

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkSize es el máximo de caracteres por fragmento sintetizado.
const DefaultChunkSize = 150

// SplitSentences parte el texto en fragmentos de a lo sumo max runas, respetando
// límites de oración y, si una oración no entra, límites de palabra.
func SplitSentences(text string, max int) []string {
	if max <= 0 {
		max = DefaultChunkSize
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var chunks []string
	current := ""
	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, sentence := range sentences(text) {
		if utf8.RuneCountInString(sentence) > max {
			flush()
			chunks = append(chunks, splitWords(sentence, max)...)
			continue
		}
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}
		if utf8.RuneCountInString(candidate) > max {
			flush()
			current = sentence
			continue
		}
		current = candidate
	}
	flush()
	return chunks
}

// sentences corta después de . ! ? (y cierres de comillas/paréntesis que los sigan).
func sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && (isTerminator(runes[end]) || isCloser(runes[end])) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func splitWords(sentence string, max int) []string {
	var out []string
	current := ""
	for _, word := range strings.Fields(sentence) {
		for utf8.RuneCountInString(word) > max {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			r := []rune(word)
			out = append(out, string(r[:max]))
			word = string(r[max:])
		}
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if utf8.RuneCountInString(candidate) > max {
			out = append(out, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
}
