package prompt

import (
	"fmt"
	"strings"
)

const openAIProviderName = "openai"

// systemInstruction is sent with every completion request.
const systemInstruction = "You are a cinematic prompt writer for an AI video generator. " +
	"Rewrite the user's idea as a single vivid paragraph that covers visual style, mood, " +
	"subject motion, lighting, camera movement and fine detail. " +
	"Respond with the description only, without a preamble, quotes or markdown."

// cinematicPhrases feed the local heuristic when the upstream call fails.
var cinematicPhrases = []string{
	"cinematic lighting, shallow depth of field",
	"smooth tracking shot, golden hour glow",
	"dramatic slow motion, volumetric light",
	"sweeping aerial camera, rich color grading",
	"handheld close-up, soft natural light",
	"ultra detailed, 4K film grain",
}

// Phrases returns a copy of the heuristic phrase set.
func Phrases() []string {
	out := make([]string, len(cinematicPhrases))
	copy(out, cinematicPhrases)
	return out
}

func buildUserMessage(prompt string) string {
	return fmt.Sprintf("Video idea: %s", prompt)
}

// cleanCompletion strips the wrappers models like to add around plain text.
func cleanCompletion(raw string) string {
	text := trimCodeFence(raw)
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	return text
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```text")
	trimmed = strings.TrimPrefix(trimmed, "```markdown")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func statusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", code/100)
}
