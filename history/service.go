package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	defaultMaxWords = 2000
	maxSaveAttempts = 3
)

type Service struct {
	store      Store
	summarizer Summarizer
	maxWords   int
	logger     *log.Logger
	now        func() time.Time
}

func NewService(store Store, summarizer Summarizer, maxWords int, logger *log.Logger) *Service {
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		store:      store,
		summarizer: summarizer,
		maxWords:   maxWords,
		logger:     logger,
		now:        time.Now,
	}
}

// Save appends a turn to the user's record, creating it on first contact.
// When the record's word count crosses the budget, the turn list is replaced
// by a summary plus the latest turn in the same write. A failed
// summarization degrades to storing the appended record unsummarized.
// Writes are conditional on the version read; a lost race is retried with
// fresh state.
func (s *Service) Save(ctx context.Context, userID, userMessage, aiMessage string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	turn := Turn{
		UserMessage: userMessage,
		AIMessage:   aiMessage,
		Timestamp:   s.now().UTC(),
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		rec, err := s.store.Get(ctx, userID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("load chat history for %s: %w", userID, err)
			}
			rec = Record{UserID: userID, History: History{Kind: KindDetailed}}
		}

		h := rec.History
		h.Turns = append(h.Turns, turn)

		if h.WordCount() > s.maxWords && s.summarizer != nil {
			summary, sumErr := s.summarizer.Summarize(ctx, h)
			if sumErr != nil {
				s.logger.Printf("summarizing chat history for %s failed, keeping full history: %v", userID, sumErr)
			} else {
				h = History{
					Kind:    KindSummarized,
					Summary: summary,
					Turns:   []Turn{turn},
				}
			}
		}

		rec.History = h
		err = s.store.Put(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("save chat history for %s: %w", userID, err)
		}
	}

	return fmt.Errorf("save chat history for %s: %w", userID, ErrVersionConflict)
}

// Get returns the user's history: the summarized form once summarization
// happened, otherwise the raw turn list. Unknown users get ErrNotFound.
func (s *Service) Get(ctx context.Context, userID string) (History, error) {
	if userID == "" {
		return History{}, fmt.Errorf("user id is required")
	}

	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return History{}, ErrNotFound
		}
		return History{}, fmt.Errorf("load chat history for %s: %w", userID, err)
	}
	return rec.History, nil
}
