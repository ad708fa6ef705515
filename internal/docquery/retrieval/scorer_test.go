package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/docquery/store/memstore"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

func newTestScorer(objects *memstore.Objects) *Scorer {
	log := logger.NewNop()
	return NewScorer(log, NewFetcher(log, objects, nil), ScorerOptions{})
}

func ids(docs []ScoredDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Document.ID)
	}
	return out
}

func TestScoreContractRenewal(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-a", Fields: map[string]string{store.FieldSubject: "Renewal Contract Draft"}},
		{ID: "doc-b", Fields: map[string]string{store.FieldSubject: "Lunch plans"}},
	}
	got := newTestScorer(memstore.NewObjects()).Score(context.Background(), "contract renewal", "u1", docs)

	require.Len(t, got, 1)
	assert.Equal(t, "doc-a", got[0].Document.ID)
	assert.Equal(t, 6, got[0].Score)
	assert.ElementsMatch(t, []string{"Subject:contract", "Subject:renewal"}, got[0].Matches)
}

func TestScoreWeights(t *testing.T) {
	objects := memstore.NewObjects()
	objects.Put("t/1", []byte("the invoice is attached"))

	docs := []store.Document{
		{ID: "invoice-2024", Fields: map[string]string{
			store.FieldNotes:    "invoice follow-up",
			store.FieldFileName: "invoice.pdf",
			store.FieldFrom:     "billing@invoice.example",
			store.FieldTo:       "me@example.com",
			store.FieldCC:       "invoice-archive@example.com",
		}, TextStoragePath: "t/1"},
	}
	got := newTestScorer(objects).Score(context.Background(), "invoice", "u1", docs)

	require.Len(t, got, 1)
	// id 5 + notes 3 + file name 1 + from 1 + cc 1 + text 2
	assert.Equal(t, 13, got[0].Score)
	assert.Equal(t, []string{"id:invoice", "Notes:invoice", "File Name:invoice", "From:invoice", "CC:invoice", "text:invoice"}, got[0].Matches)
}

func TestScoreStopWordsOnly(t *testing.T) {
	objects := memstore.NewObjects()
	objects.Put("t/1", []byte("the the the"))
	docs := []store.Document{{ID: "the-doc", TextStoragePath: "t/1"}}

	got := newTestScorer(objects).Score(context.Background(), "  the of and ", "u1", docs)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, objects.Reads("t/1"), "no fetch should happen when the query has no tokens")
}

func TestScoreCapAndOrder(t *testing.T) {
	var docs []store.Document
	for i := 0; i < 9; i++ {
		subject := "report"
		for j := 0; j < i%4; j++ {
			subject += fmt.Sprintf(" q%d", j)
		}
		docs = append(docs, store.Document{
			ID:     fmt.Sprintf("d%d", i),
			Fields: map[string]string{store.FieldSubject: subject},
		})
	}

	got := newTestScorer(memstore.NewObjects()).Score(context.Background(), "report q0 q1 q2", "u1", docs)

	require.Len(t, got, MaxCandidates)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
	// d3 and d7 tie at the top (12); d2 and d6 follow (9); ties keep enumeration order.
	assert.Equal(t, []string{"d3", "d7", "d2", "d6", "d1"}, ids(got))
}

func TestScoreTieBreakIsEnumerationOrder(t *testing.T) {
	docs := []store.Document{
		{ID: "z", Fields: map[string]string{store.FieldSubject: "budget"}},
		{ID: "m", Fields: map[string]string{store.FieldSubject: "budget"}},
		{ID: "a", Fields: map[string]string{store.FieldSubject: "budget"}},
	}
	got := newTestScorer(memstore.NewObjects()).Score(context.Background(), "budget", "u1", docs)
	assert.Equal(t, []string{"z", "m", "a"}, ids(got))
}

func TestScoreFetchFailureIsIsolated(t *testing.T) {
	objects := memstore.NewObjects()
	objects.Put("t/ok", []byte("quarterly budget review"))
	objects.Fail("t/bad", errors.New("backend unavailable"))

	docs := []store.Document{
		// The sentinel for this document contains "budget" through its ID; it must not count as content.
		{ID: "budget-bad", Fields: map[string]string{store.FieldSubject: "budget"}, TextStoragePath: "t/bad"},
		{ID: "ok", TextStoragePath: "t/ok"},
	}
	got := newTestScorer(objects).Score(context.Background(), "budget", "u1", docs)

	require.Len(t, got, 2)
	assert.Equal(t, "budget-bad", got[0].Document.ID)
	assert.Equal(t, WeightID+WeightPrimary, got[0].Score)
	assert.Equal(t, "ok", got[1].Document.ID)
	assert.Equal(t, WeightFullText, got[1].Score)
}

func TestScoreFetchesEveryTextPointer(t *testing.T) {
	objects := memstore.NewObjects()
	var docs []store.Document
	for i := 0; i < 12; i++ {
		path := fmt.Sprintf("t/%d", i)
		objects.Put(path, []byte("memo about the merger"))
		docs = append(docs, store.Document{ID: fmt.Sprintf("doc%d", i), TextStoragePath: path})
	}
	docs = append(docs, store.Document{ID: "no-text", Fields: map[string]string{store.FieldSubject: "merger"}})

	got := newTestScorer(objects).Score(context.Background(), "merger", "u1", docs)

	assert.Len(t, got, MaxCandidates)
	for i := 0; i < 12; i++ {
		assert.EqualValues(t, 1, objects.Reads(fmt.Sprintf("t/%d", i)))
	}
}

func TestScoreBoundedFetchConcurrency(t *testing.T) {
	objects := memstore.NewObjects()
	var docs []store.Document
	for i := 0; i < 6; i++ {
		path := fmt.Sprintf("t/%d", i)
		objects.Put(path, []byte("lease"))
		docs = append(docs, store.Document{ID: fmt.Sprintf("d%d", i), TextStoragePath: path})
	}
	log := logger.NewNop()
	s := NewScorer(log, NewFetcher(log, objects, nil), ScorerOptions{MaxCandidates: 2, FetchConcurrency: 2})

	got := s.Score(context.Background(), "lease", "u1", docs)
	assert.Equal(t, []string{"d0", "d1"}, ids(got))
}

func TestScoreCapCannotExceedFive(t *testing.T) {
	var docs []store.Document
	for i := 0; i < 8; i++ {
		docs = append(docs, store.Document{ID: fmt.Sprintf("memo-%d", i)})
	}
	log := logger.NewNop()
	s := NewScorer(log, NewFetcher(log, memstore.NewObjects(), nil), ScorerOptions{MaxCandidates: 8})

	got := s.Score(context.Background(), "memo", "u1", docs)
	assert.Equal(t, []string{"memo-0", "memo-1", "memo-2", "memo-3", "memo-4"}, ids(got))
}
