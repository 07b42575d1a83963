// Package prompt builds translation prompts and decodes model replies.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lingua-lens/lens/pkg/protocol"
)

// NonJSONNote is placed in UsageNote when a reply could not be decoded.
const NonJSONNote = "Model returned non-JSON output; showing raw text."

// Prompt is an instruction/content pair for a chat-style model.
type Prompt struct {
	System string
	User   string
}

// Build returns the instruction for translating text into targetLang.
// The user content is the subtitle text exactly as given.
func Build(text, sourceLang, targetLang string) Prompt {
	lines := []string{
		"You are a precise dictionary and translation helper for subtitles.",
	}
	if src := strings.TrimSpace(sourceLang); src != "" && !strings.EqualFold(src, "auto") {
		lines = append(lines, fmt.Sprintf("The input is usually in %s.", src))
	}
	lines = append(lines,
		fmt.Sprintf("If the input is already in %s, define it in %s.", targetLang, targetLang),
		fmt.Sprintf("Otherwise translate the input into %s.", targetLang),
		fmt.Sprintf("Every value you write MUST be in %s only. Do not switch scripts.", targetLang),
		"Return one JSON object with exactly these keys:",
		fmt.Sprintf("- translation: the %s translation (or the input itself if it is already %s)", targetLang, targetLang),
		fmt.Sprintf("- meaning: short definition in %s (max 10 words)", targetLang),
		"- key_phrase: the most important word or phrase",
		"- pronunciation: phonetic guide",
		fmt.Sprintf("- usage_note: brief context in %s (max 10 words)", targetLang),
		"Reply with valid JSON only. Be extremely concise.",
	)
	return Prompt{System: strings.Join(lines, "\n"), User: text}
}

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// Parse decodes a model reply. It never fails: output that is not a JSON
// object degrades to a result carrying the raw text.
func Parse(raw string) protocol.TranslationResult {
	cleaned := strings.TrimSpace(raw)
	cleaned = leadingFence.ReplaceAllString(cleaned, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end < start {
		return fallback(raw)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &fields); err != nil || fields == nil {
		return fallback(raw)
	}

	return protocol.TranslationResult{
		Translation:   text(fields["translation"]),
		Meaning:       text(fields["meaning"]),
		KeyPhrase:     text(fields["key_phrase"]),
		Pronunciation: text(fields["pronunciation"]),
		UsageNote:     text(fields["usage_note"]),
	}
}

func fallback(raw string) protocol.TranslationResult {
	return protocol.TranslationResult{
		Translation: strings.TrimSpace(raw),
		UsageNote:   NonJSONNote,
	}
}

// text renders a decoded JSON value as display text.
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}
