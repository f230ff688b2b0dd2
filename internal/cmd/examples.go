package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/scour/internal/present"
)

var examples = map[string]string{
	"Summarize a page":           `scour "summarize the main points of https://example.com/article"`,
	"Compare products":           `scour "compare the top search results for mechanical keyboards" | glow`,
	"Check what a site says now": `scour -q "what does the hacker news front page look like right now?"`,
	"Chase a story across sites": `scour chat "find the original source of this week's big llm benchmark claim"`,
}

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc
}

func cheapHighlighting(s present.Styles, code string) string {
	code = regexp.
		MustCompile(`"([^"\\]|\\.)*"`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Quote.Render(x)
		})
	code = regexp.
		MustCompile(`\|`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Pipe.Render(x)
		})
	return code
}
