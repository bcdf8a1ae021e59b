// internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	jsonArrayRegex  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")

	// fencedBlockRegex matches one fenced block at a time. Group 1 is the language tag, group 2 the body.
	fencedBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60([a-zA-Z]*)[ \\t]*\\r?\\n?(.*?)\x60\x60\x60")

	// trailingCommaRegex finds a comma directly before a closing bracket.
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseJSONResponse attempts to parse an LLM response string into a target Go type using generics.
// It handles common LLM formatting issues, such as wrapping the JSON in markdown code blocks.
func ParseJSONResponse[T any](response string) (*T, error) {
	jsonStringToParse := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(jsonStringToParse), &result); err != nil {
		repaired := RepairJSON(jsonStringToParse)
		if repaired == jsonStringToParse || json.Unmarshal([]byte(repaired), &result) != nil {
			return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, TruncateString(jsonStringToParse, 500))
		}
	}
	return &result, nil
}

// ExtractJSON returns the most likely JSON payload inside an LLM response:
// the body of a fenced block, or the outermost object/array in prose.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			return matches[1]
		}
		return response
	}

	if (isObject || isArray) && !strings.HasPrefix(response, "{") && !strings.HasPrefix(response, "[") {
		if isObject {
			fb := strings.Index(response, "{")
			lb := strings.LastIndex(response, "}")
			if fb != -1 && lb > fb {
				return response[fb : lb+1]
			}
		}
		if isArray {
			fb := strings.Index(response, "[")
			lb := strings.LastIndex(response, "]")
			if fb != -1 && lb > fb {
				return response[fb : lb+1]
			}
		}
	}
	return response
}

// FencedBlock is one markdown code fence found in a response.
type FencedBlock struct {
	Lang  string
	Body  string
	Start int // byte offset of the opening fence
	End   int // byte offset just past the closing fence
}

// FencedBlocks returns every fenced block in order of appearance.
func FencedBlocks(s string) []FencedBlock {
	locs := fencedBlockRegex.FindAllStringSubmatchIndex(s, -1)
	blocks := make([]FencedBlock, 0, len(locs))
	for _, loc := range locs {
		blocks = append(blocks, FencedBlock{
			Lang:  strings.ToLower(s[loc[2]:loc[3]]),
			Body:  strings.TrimSpace(s[loc[4]:loc[5]]),
			Start: loc[0],
			End:   loc[1],
		})
	}
	return blocks
}

// TaggedBlock is the content between <tag> and </tag>.
type TaggedBlock struct {
	Content string
	Start   int
	End     int
}

// ExtractTag returns the first <tag>...</tag> block. Tag matching is case-insensitive.
func ExtractTag(s, tag string) (TaggedBlock, bool) {
	re := regexp.MustCompile(`(?is)<\s*` + regexp.QuoteMeta(tag) + `\s*>(.*?)<\s*/\s*` + regexp.QuoteMeta(tag) + `\s*>`)
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return TaggedBlock{}, false
	}
	return TaggedBlock{
		Content: strings.TrimSpace(s[loc[2]:loc[3]]),
		Start:   loc[0],
		End:     loc[1],
	}, true
}

// RepairJSON removes trailing commas before closing brackets, a common LLM slip.
// String contents are not inspected, so a literal ",}" inside a value is also rewritten.
func RepairJSON(s string) string {
	return trailingCommaRegex.ReplaceAllString(s, "$1")
}

// TruncateToBudget returns s cut to at most budget bytes, ending with marker
// when cut. The cut never splits a UTF-8 sequence and the result never
// exceeds budget. When the marker does not fit, s is cut without it.
func TruncateToBudget(s string, budget int, marker string) string {
	if budget <= 0 {
		return ""
	}
	if len(s) <= budget {
		return s
	}
	if len(marker) >= budget {
		return cutRunes(s, budget)
	}
	return cutRunes(s, budget-len(marker)) + marker
}

// cutRunes returns the longest prefix of s no longer than n bytes that ends on a rune boundary.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TruncateString cuts s to maxLen bytes on a rune boundary and appends "..."
// when anything was dropped.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return cutRunes(s, maxLen) + "..."
}
