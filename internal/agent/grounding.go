package agent

import (
	"fmt"
	"unicode/utf8"
)

// TruncateGrounding caps text at limit characters (runes). Text at or under the
// cap is returned unmodified; longer text is cut to exactly the first limit
// characters with no word-boundary adjustment.
func TruncateGrounding(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

// groundingInstructions wraps a document in the instructions given to a new assistant.
func groundingInstructions(document string) string {
	return fmt.Sprintf(`Answer questions about the document below.
Only use knowledge contained in this document.
If the answer cannot be found in the text, say that you don't know. Do not make inferences.
Only state what is certainly true based on the text, and never cite anything that is not in the document.

Here is the document: %s
`, document)
}
