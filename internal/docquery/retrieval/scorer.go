package retrieval

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

const (
	MaxCandidates = 5

	WeightID       = 5
	WeightPrimary  = 3
	WeightField    = 1
	WeightFullText = 2
)

// Subject and Notes carry more signal than address and file name fields.
var fieldWeights = map[string]int{
	store.FieldSubject: WeightPrimary,
	store.FieldNotes:   WeightPrimary,
}

type ScoredDocument struct {
	Document store.Document
	Score    int
	Matches  []string
}

type ScorerOptions struct {
	// MaxCandidates caps the result size. Values outside [1, MaxCandidates] use MaxCandidates.
	MaxCandidates int
	// FetchConcurrency bounds the text fetch fan-out; 0 means unbounded.
	FetchConcurrency int
}

type Scorer struct {
	log     *logger.Logger
	fetcher TextFetcher
	opts    ScorerOptions
}

func NewScorer(log *logger.Logger, fetcher TextFetcher, opts ScorerOptions) *Scorer {
	if opts.MaxCandidates <= 0 || opts.MaxCandidates > MaxCandidates {
		opts.MaxCandidates = MaxCandidates
	}
	return &Scorer{
		log:     log.With("component", "Scorer"),
		fetcher: fetcher,
		opts:    opts,
	}
}

// Score ranks docs against query. Every document with a text pointer has its text
// fetched before ranking, so fetch cost scales with len(docs), not with the cap.
// Documents with equal scores keep their enumeration order.
func (s *Scorer) Score(ctx context.Context, query, userID string, docs []store.Document) []ScoredDocument {
	tokens := Tokenize(query)
	if len(tokens) == 0 || len(docs) == 0 {
		return []ScoredDocument{}
	}

	texts := s.fetchAll(ctx, userID, docs)

	scored := make([]ScoredDocument, 0, len(docs))
	for i, doc := range docs {
		sd := scoreDocument(doc, tokens, texts[i])
		if sd.Score <= 0 {
			continue
		}
		scored = append(scored, sd)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > s.opts.MaxCandidates {
		scored = scored[:s.opts.MaxCandidates]
	}

	s.log.Debug("scored documents",
		"user_id", userID,
		"tokens", len(tokens),
		"documents", len(docs),
		"candidates", len(scored),
	)
	return scored
}

func (s *Scorer) fetchAll(ctx context.Context, userID string, docs []store.Document) []string {
	texts := make([]string, len(docs))

	var g errgroup.Group
	if s.opts.FetchConcurrency > 0 {
		g.SetLimit(s.opts.FetchConcurrency)
	}
	for i, doc := range docs {
		if !doc.HasTextPath() {
			continue
		}
		g.Go(func() error {
			texts[i] = s.fetcher.FetchText(ctx, doc, userID)
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range texts {
		if IsSentinel(t) {
			s.log.Debug("content bonus skipped", "doc_id", docs[i].ID, "user_id", userID)
			texts[i] = ""
		}
	}
	return texts
}

// scoreDocument computes the additive keyword score. text must already have sentinels removed.
func scoreDocument(doc store.Document, tokens []string, text string) ScoredDocument {
	sd := ScoredDocument{Document: doc}

	id := strings.ToLower(doc.ID)
	for _, tok := range tokens {
		if strings.Contains(id, tok) {
			sd.Score += WeightID
			sd.Matches = append(sd.Matches, "id:"+tok)
		}
	}

	for _, field := range store.MetadataFields {
		value := strings.ToLower(doc.Field(field))
		if value == "" {
			continue
		}
		weight, ok := fieldWeights[field]
		if !ok {
			weight = WeightField
		}
		for _, tok := range tokens {
			if strings.Contains(value, tok) {
				sd.Score += weight
				sd.Matches = append(sd.Matches, field+":"+tok)
			}
		}
	}

	if text != "" {
		lower := strings.ToLower(text)
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				sd.Score += WeightFullText
				sd.Matches = append(sd.Matches, "text:"+tok)
			}
		}
	}
	return sd
}
