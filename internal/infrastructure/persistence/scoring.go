// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"sort"
	"strings"
	"time"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

// searchScorer ranks candidate messages by combined relevance and
// recency. Shared by the database-backed and in-memory stores so both
// implement identical ranking.
type searchScorer struct {
	cfg config.SearchConfig
	now time.Time
}

func newSearchScorer(cfg config.SearchConfig, now time.Time) *searchScorer {
	return &searchScorer{cfg: cfg, now: now}
}

// queryTokens lowercases and splits the query. An empty token list
// means nothing can match.
func queryTokens(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// score computes relevance and recency for one message. ok is false
// when the message falls outside the age window or matches nothing,
// meaning it must not appear in results at all.
func (s *searchScorer) score(msg *entity.Message, query string, tokens []string, maxAgeDays int) (repository.SearchResult, bool) {
	age := s.now.Sub(msg.Timestamp())
	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
	if age < 0 {
		age = 0
	}
	if age >= maxAge {
		return repository.SearchResult{}, false
	}

	body := strings.ToLower(msg.Body())

	var relevance float64
	if strings.Contains(body, strings.ToLower(strings.TrimSpace(query))) && strings.TrimSpace(query) != "" {
		relevance += s.cfg.ExactWeight
	}
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(body, tok) {
			matched++
		}
	}
	relevance += s.cfg.TokenWeight * float64(matched)

	if relevance == 0 {
		return repository.SearchResult{}, false
	}

	recency := s.cfg.RecencyWeight * (1 - float64(age)/float64(maxAge))

	return repository.SearchResult{
		Message:   msg,
		Relevance: relevance,
		Recency:   recency,
		Score:     relevance + recency,
	}, true
}

// rank sorts by score descending, ties broken by timestamp descending,
// and truncates to maxResults.
func rank(results []repository.SearchResult, maxResults int) []repository.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Message.Timestamp().After(results[j].Message.Timestamp())
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}
