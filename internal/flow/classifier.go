package flow

import "strings"

// questionStarters are leading words that mark a message as a question
// even without a question mark.
var questionStarters = []string{
	"what", "how", "where", "when", "why", "which", "who", "whose",
	"is", "are", "do", "does", "did", "can", "could", "will", "would",
	"should", "tell me", "show me", "explain", "describe",
	"details", "information",
}

// questionPhrases mark a question anywhere in the message.
var questionPhrases = []string{
	"how many", "how much", "how long", "what is", "what are",
	"is there", "are there", "do you have", "can i", "can we",
	"tell me about", "what about", "any info", "more details",
}

// IsQuestion reports whether a traveler message is a question rather
// than an answer to the current prompt. Questions are answered in place
// without advancing the conversation.
func IsQuestion(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}

	if strings.Contains(lower, "?") {
		return true
	}

	for _, phrase := range questionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	for _, starter := range questionStarters {
		if lower == starter || strings.HasPrefix(lower, starter+" ") {
			return true
		}
	}

	return false
}
