package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"simple-gpt/internal/domain"
)

var (
	questionStartRe = regexp.MustCompile(`(?i)^(why|what|how|when|where|who|can|could|would|should|is|are|do|does|did|will|has|have)\s`)
	topicPhraseRe   = regexp.MustCompile(`(?i)(?:tell me about|explain|describe|what is|who is|how does)\s+([^?.]+)`)
)

// GenerateTitle deriva un título corto a partir del primer mensaje del usuario.
// Preguntas directas se cortan en el primer signo de cierre; frases tipo
// "tell me about X" usan el tema capturado; el resto se trunca a 40 caracteres.
func GenerateTitle(message string) string {
	content := strings.TrimSpace(message)
	if content == "" {
		return domain.DefaultConversationTitle
	}

	if questionStartRe.MatchString(content) {
		end := len(content)
		if i := strings.Index(content, "?"); i > 0 && i+1 < end {
			end = i + 1
		}
		if i := strings.Index(content, "."); i > 0 && i < end {
			end = i
		}
		if i := strings.Index(content, "\n"); i > 0 && i < end {
			end = i
		}
		return truncateRunes(content[:end], 50)
	}

	if m := topicPhraseRe.FindStringSubmatch(content); len(m) == 2 && strings.TrimSpace(m[1]) != "" {
		title := capitalize(strings.TrimSpace(m[1]))
		if strings.Contains(content, "?") {
			title += "?"
		}
		return title
	}

	if utf8.RuneCountInString(content) > 40 {
		return truncateRunes(content, 40) + "..."
	}
	return content
}

// truncateRunes corta en límites de runa para no partir caracteres multibyte.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// IsPlaceholderTitle reporta si el título todavía es el genérico.
func IsPlaceholderTitle(title string) bool {
	title = strings.TrimSpace(title)
	return title == "" || title == domain.DefaultConversationTitle
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
