// Package history persists per-user conversation records and condenses them
// into a rolling summary once they grow past a word budget.
package history

import (
	"strings"
	"time"
)

type Turn struct {
	UserMessage string    `json:"user_message"`
	AIMessage   string    `json:"ai_message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Kind tags the record variant. A record is either detailed (the full turn
// list) or summarized (a summary plus the turns accumulated since the last
// summarization, at least the most recent one), never both at once.
type Kind string

const (
	KindDetailed   Kind = "detailed"
	KindSummarized Kind = "summarized"
)

type History struct {
	Kind    Kind
	Summary string
	Turns   []Turn
}

// LastTurn returns the most recent turn, or nil for an empty record.
func (h History) LastTurn() *Turn {
	if len(h.Turns) == 0 {
		return nil
	}
	return &h.Turns[len(h.Turns)-1]
}

// WordCount approximates the record's token count as the number of
// whitespace-delimited words across the summary and all turns.
func (h History) WordCount() int {
	total := len(strings.Fields(h.Summary))
	for _, turn := range h.Turns {
		total += len(strings.Fields(turn.UserMessage))
		total += len(strings.Fields(turn.AIMessage))
	}
	return total
}
