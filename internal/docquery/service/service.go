// Package service runs one query through the retrieval-augmented generation pipeline:
// score the caller's documents, fetch and budget the winners, and ask the model.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/docquery-backend/internal/docquery/budget"
	"github.com/yungbote/docquery-backend/internal/docquery/generation"
	"github.com/yungbote/docquery-backend/internal/docquery/prompt"
	"github.com/yungbote/docquery-backend/internal/docquery/retrieval"
	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/observability"
	"github.com/yungbote/docquery-backend/internal/platform/apierr"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

const NoResultsAnswer = "I couldn't find any relevant documents for your query."

var (
	ErrMissingQuery  = errors.New("query is required")
	ErrMissingUserID = errors.New("user id is required")
)

type QueryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId,omitempty"`
}

// Source describes one document that was handed to the model as context.
type Source struct {
	ID        string   `json:"id"`
	Score     int      `json:"score"`
	Matches   []string `json:"matches"`
	Subject   string   `json:"subject,omitempty"`
	FileName  string   `json:"fileName,omitempty"`
	Truncated bool     `json:"truncated"`
}

type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Model   string   `json:"model,omitempty"`
}

type Generator interface {
	Generate(ctx context.Context, req prompt.Request) (*generation.Result, error)
}

type Scorer interface {
	Score(ctx context.Context, query, userID string, docs []store.Document) []retrieval.ScoredDocument
}

type QueryService interface {
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

type Options struct {
	Params prompt.Params
	// FetchConcurrency bounds the top-K text fetch; 0 means one goroutine per candidate.
	FetchConcurrency int
}

type queryService struct {
	log       *logger.Logger
	docs      store.DocumentStore
	scorer    Scorer
	fetcher   retrieval.TextFetcher
	allocator *budget.Allocator
	gen       Generator
	opts      Options
	tracer    trace.Tracer
}

func NewQueryService(
	baseLog *logger.Logger,
	docs store.DocumentStore,
	scorer Scorer,
	fetcher retrieval.TextFetcher,
	allocator *budget.Allocator,
	gen Generator,
	opts Options,
) QueryService {
	if opts.Params == (prompt.Params{}) {
		opts.Params = prompt.DefaultParams()
	}
	return &queryService{
		log:       baseLog.With("service", "QueryService"),
		docs:      docs,
		scorer:    scorer,
		fetcher:   fetcher,
		allocator: allocator,
		gen:       gen,
		opts:      opts,
		tracer:    otel.Tracer("docquery/service"),
	}
}

func (s *queryService) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	query := strings.TrimSpace(req.Query)
	userID := strings.TrimSpace(req.UserID)
	if query == "" {
		return nil, apierr.InvalidArgument(ErrMissingQuery)
	}
	if userID == "" {
		return nil, apierr.InvalidArgument(ErrMissingUserID)
	}

	ctx, span := s.tracer.Start(ctx, "docquery.query")
	defer span.End()

	start := time.Now()
	resp, err := s.run(ctx, query, userID)
	if err != nil {
		ae := mapError(err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, ae.Code)
		observability.Current().ObserveQuery(ae.Code, -1, time.Since(start))
		s.log.Error("query failed", "user_id", userID, "code", ae.Code, "error", err)
		return nil, ae
	}
	span.SetAttributes(attribute.Int("docquery.sources", len(resp.Sources)))
	observability.Current().ObserveQuery("ok", len(resp.Sources), time.Since(start))
	return resp, nil
}

func (s *queryService) run(ctx context.Context, query, userID string) (*QueryResponse, error) {
	docs, err := s.docs.ListDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates := s.scorer.Score(ctx, query, userID, docs)
	s.log.Info("scored documents", "user_id", userID, "documents", len(docs), "candidates", len(candidates))
	if len(candidates) == 0 {
		return &QueryResponse{Answer: NoResultsAnswer, Sources: []Source{}}, nil
	}

	texts, err := s.fetchCandidates(ctx, userID, candidates)
	if err != nil {
		return nil, err
	}

	blocks := s.allocator.Allocate(texts)
	for _, b := range blocks {
		observability.Current().IncContextBlock(b.Truncated)
	}
	req := prompt.NewRequest(prompt.Assemble(query, blocks), s.opts.Params)

	res, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(candidates))
	for i, c := range candidates {
		sources = append(sources, Source{
			ID:        c.Document.ID,
			Score:     c.Score,
			Matches:   c.Matches,
			Subject:   c.Document.Field(store.FieldSubject),
			FileName:  c.Document.Field(store.FieldFileName),
			Truncated: blocks[i].Truncated,
		})
	}
	return &QueryResponse{Answer: res.Answer, Sources: sources, Model: res.Model}, nil
}

// fetchCandidates resolves text for the ranked candidates in parallel, keeping rank order.
// A failed fetch yields a sentinel in place of the text, not an error.
func (s *queryService) fetchCandidates(ctx context.Context, userID string, candidates []retrieval.ScoredDocument) ([]budget.DocumentText, error) {
	out := make([]budget.DocumentText, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	if s.opts.FetchConcurrency > 0 {
		g.SetLimit(s.opts.FetchConcurrency)
	}
	for i, c := range candidates {
		g.Go(func() error {
			out[i] = budget.DocumentText{
				Document: c.Document,
				Text:     s.fetcher.FetchText(gctx, c.Document, userID),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func mapError(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var ge *generation.Error
	if errors.As(err, &ge) {
		switch ge.Kind {
		case generation.FailureTokenLimit:
			return apierr.ResourceExhausted(err)
		case generation.FailureBadRequest:
			return apierr.FailedPrecondition(err)
		}
	}
	return apierr.Internal(err)
}
