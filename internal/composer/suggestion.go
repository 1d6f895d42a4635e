package composer

import (
	"hash/fnv"
	"strings"
)

// suggestionTemplates produce non-directive, supportive phrasing for the
// companion-only gentle_suggestion capability. {topic} is replaced with a
// keyword extracted from the caller's context.
var suggestionTemplates = []string{
	"You might find it helpful to take a moment with %s.",
	"When you're ready, revisiting %s could be worthwhile.",
	"It's okay to approach %s at your own pace.",
	"One small step with %s might open things up a bit.",
	"There's no rush. Exploring %s when the time feels right is perfectly fine.",
	"I wonder if returning to %s with fresh eyes might feel different now.",
}

// suggestionFallback is returned for empty context.
const suggestionFallback = "Take things one step at a time. You're doing well."

// GentleSuggestion generates a low-stakes supportive suggestion from the
// given context. Template choice is deterministic per topic so repeated
// calls with the same context produce the same suggestion.
func GentleSuggestion(context string) string {
	context = strings.TrimSpace(context)
	if context == "" {
		return suggestionFallback
	}

	topic := extractTopic(context)
	template := suggestionTemplates[topicHash(topic)%uint32(len(suggestionTemplates))]
	return strings.Replace(template, "%s", topic, 1)
}

// extractTopic returns the last meaningful word group (up to 4 words).
func extractTopic(context string) string {
	words := strings.Fields(context)
	if len(words) <= 4 {
		return context
	}
	topic := strings.Join(words[len(words)-4:], " ")
	return strings.TrimRight(topic, ".,;:!?")
}

func topicHash(topic string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(topic))
	return h.Sum32()
}
