package telegram

import (
	"fmt"
	"sort"
	"strings"

	"stemly-gateway/api/internal/fallback"
	"stemly-gateway/api/internal/tutor"
	"stemly-gateway/api/internal/util"
)

// Telegram rejects messages longer than 4096 characters.
const maxMessageRunes = 4000

const startText = "Send a photo of a STEM problem or describe it in a message. " +
	"I'll work out the topic and reply with study notes and a short quiz.\n" +
	"Commands: /quiz [n], /health"

func (r *Router) sendLong(chatID int64, text string) {
	r.send(chatID, util.Truncate(text, maxMessageRunes))
}

func formatClassification(c tutor.Classification) string {
	var b strings.Builder
	b.WriteString("Topic: " + c.Topic)
	if len(c.Variables) > 0 {
		b.WriteString("\nVariables: " + strings.Join(c.Variables, ", "))
	}
	return b.String()
}

func formatNotes(n tutor.Notes) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📘 %s\n\n%s\n", n.Topic, strings.TrimSpace(n.Explanation))
	if len(n.VariableBreakdown) > 0 {
		keys := make([]string, 0, len(n.VariableBreakdown))
		for k := range n.VariableBreakdown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nVariables:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "• %s: %s\n", k, n.VariableBreakdown[k])
		}
	}
	writeList(&b, "Formulas", n.Formulas)
	if ex := strings.TrimSpace(n.Example); ex != "" {
		b.WriteString("\nExample:\n" + ex + "\n")
	}
	writeList(&b, "Common mistakes", n.Mistakes)
	writeList(&b, "Summary", n.Summary)
	return strings.TrimSpace(b.String())
}

func formatQuiz(q fallback.Quiz) string {
	if q.Error != "" {
		return "Quiz unavailable: " + q.Error
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Quiz: %s", q.Topic)
	if q.Fallback {
		b.WriteString(" (offline questions)")
	}
	b.WriteString("\n")
	for i, qq := range q.Questions {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, qq.Question)
		for j, opt := range qq.Options {
			fmt.Fprintf(&b, "   %c) %s\n", 'A'+rune(j), opt)
		}
		if qq.CorrectIndex >= 0 && qq.CorrectIndex < len(qq.Options) {
			fmt.Fprintf(&b, "   Answer: %c\n", 'A'+rune(qq.CorrectIndex))
		}
	}
	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + title + ":\n")
	for _, it := range items {
		b.WriteString("• " + it + "\n")
	}
}
