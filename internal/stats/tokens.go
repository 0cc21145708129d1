// Package stats computes usage statistics over captured chat message logs.
package stats

import (
	"regexp"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Character-per-token ratios by model, used when exact tokenization is
// unavailable.
var modelTokenRatios = map[string]float64{
	"gpt-3.5-turbo":   4.0,
	"gpt-4":           3.8,
	"claude-3-opus":   3.5,
	"claude-3-haiku":  3.7,
	"claude-3-sonnet": 3.6,
}

const defaultTokenRatio = 4.0

// Language density modifiers for the heuristic path.
var languageModifiers = map[string]float64{
	"en": 1.0,
	"fr": 0.9,
	"de": 0.85,
	"ja": 0.5,
	"zh": 0.4,
}

var (
	kanaPattern   = regexp.MustCompile(`[\x{3040}-\x{309f}\x{30a0}-\x{30ff}]`)
	cjkPattern    = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	frenchPattern = regexp.MustCompile(`[ùûÿàâæçéèêëïî]`)
	germanPattern = regexp.MustCompile(`[äöüß]`)
	codeBlocks    = regexp.MustCompile("```[\\s\\S]*?```")
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// detectLanguage guesses the dominant language from character patterns.
// It only needs to be good enough to pick a density modifier.
func detectLanguage(content string) string {
	if len(content) < 10 {
		return "en"
	}
	if kanaPattern.MatchString(content) {
		return "ja"
	}
	if cjkPattern.MatchString(content) {
		return "zh"
	}
	if frenchPattern.MatchString(content) {
		return "fr"
	}
	if germanPattern.MatchString(content) {
		return "de"
	}
	return "en"
}

// EstimateTokens estimates the token count of a message. Uses the cl100k
// tokenizer when available and falls back to a character-ratio heuristic
// adjusted for model and language.
func EstimateTokens(content, model string) int {
	if content == "" {
		return 0
	}

	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})

	if codec != nil {
		if n, err := codec.Count(content); err == nil && n > 0 {
			return n
		}
	}

	return heuristicTokens(content, model)
}

// heuristicTokens is the ratio-based estimate used when the tokenizer is
// unavailable.
func heuristicTokens(content, model string) int {
	ratio, ok := modelTokenRatios[model]
	if !ok {
		ratio = defaultTokenRatio
	}
	modifier, ok := languageModifiers[detectLanguage(content)]
	if !ok {
		modifier = 1.0
	}

	// Fenced code is more token-dense than prose.
	codeModifier := 1.0 + float64(len(codeBlocks.FindAllString(content, -1)))*0.05

	estimated := int(float64(len(content)) / (ratio * modifier) * codeModifier)
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
