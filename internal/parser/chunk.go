package parser

import (
	"strings"
	"unicode/utf8"
)

// chunkContent splits content into windows of at most maxChars bytes, each
// starting overlapChars bytes before the previous one ended. A window is cut
// early at a space, newline or period found in its last 10%, and the next
// window starts relative to that cut so no text is skipped. Runes are never
// split, so a window narrower than one rune holds that single rune.
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		if end < contentLen {
			end = runeBoundary(content, end, start)
			if end == start {
				// window narrower than one rune: take the whole rune
				_, size := utf8.DecodeRuneInString(content[start:])
				end = start + size
			}

			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(content[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == contentLen {
			break
		}

		next := runeBoundary(content, max(end-overlapChars, start+1), start)
		if next == start {
			next = end
		}
		start = next
	}

	return chunks
}

// runeBoundary moves i back to the start of the rune containing it, but not
// below floor.
func runeBoundary(s string, i, floor int) int {
	for i > floor && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
