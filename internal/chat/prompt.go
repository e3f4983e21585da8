// Package chat orchestrates a single chat turn: conversation resolution,
// context assembly, completion, and envelope emission.
package chat

import (
	"fmt"
	"strings"

	"github.com/aaelfe/me-machine/internal/domain"
)

const basePrompt = `You are an AI assistant that represents the user's best self. You're designed to help with daily check-ins, self-reflection, and personal growth.

Your personality should be:
- Supportive and encouraging
- Thoughtful and reflective
- Like talking to your wisest, most caring self
- Focused on growth and self-improvement
`

const checkInPrompt = `
You're helping the user with their daily check-in. Ask thoughtful questions about:
- How they're feeling today
- What went well recently
- What challenges they're facing
- Goals they want to work on
- Reflections on their progress

Keep responses conversational and personal.
`

const reflectionPrompt = `
You're helping the user reflect on their experiences and growth.
Focus on deeper questions and insights about patterns, progress, and personal development.
`

// BuildSystemPrompt selects the instruction template for the context type
// and personalizes it with the user's recent check-ins.
func BuildSystemPrompt(contextType domain.ContextType, checkIns []domain.CheckIn) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	switch contextType {
	case domain.ContextCheckIn:
		b.WriteString(checkInPrompt)
	case domain.ContextReflection:
		b.WriteString(reflectionPrompt)
	}

	if len(checkIns) > 0 {
		moods := make([]string, 0, 3)
		for _, ci := range checkIns {
			if len(moods) == 3 {
				break
			}
			if ci.MoodScore != "" {
				moods = append(moods, ci.MoodScore)
			}
		}
		if len(moods) > 0 {
			fmt.Fprintf(&b, "\n\nRecent mood pattern: %s", strings.Join(moods, ", "))
		}
	}

	if len(checkIns) > 1 {
		fmt.Fprintf(&b, "\n\nThe user has been consistent with check-ins (%d recent entries). Acknowledge this positively.", len(checkIns))
	}

	return b.String()
}

// SuggestionsFor returns the fixed follow-up suggestions for a context type.
func SuggestionsFor(contextType domain.ContextType) []string {
	if contextType == domain.ContextCheckIn {
		return []string{
			"Tell me more about that",
			"How can I support you with this?",
			"What's one small step you could take?",
			"How does this compare to yesterday?",
		}
	}
	return []string{
		"Can you elaborate on that?",
		"What would you like to explore next?",
		"How are you feeling about this?",
	}
}
