package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/observability"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

const (
	noTextPathPrefix = "[No text path for document "
	fetchErrorPrefix = "[Error fetching text for document "
)

func NoTextPathSentinel(docID string) string { return noTextPathPrefix + docID + "]" }

func FetchErrorSentinel(docID string) string { return fetchErrorPrefix + docID + "]" }

// IsSentinel reports whether s is a placeholder produced by a failed or impossible text lookup.
func IsSentinel(s string) bool {
	if !strings.HasSuffix(s, "]") {
		return false
	}
	return strings.HasPrefix(s, noTextPathPrefix) || strings.HasPrefix(s, fetchErrorPrefix)
}

// TextFetcher resolves the text of a document. It never fails; problems are reported as sentinel strings.
type TextFetcher interface {
	FetchText(ctx context.Context, doc store.Document, userID string) string
}

type Fetcher struct {
	log     *logger.Logger
	objects store.ObjectStore
	decoder TextDecoder
}

func NewFetcher(log *logger.Logger, objects store.ObjectStore, decoder TextDecoder) *Fetcher {
	if decoder == nil {
		decoder = DefaultDecoder
	}
	return &Fetcher{
		log:     log.With("component", "TextFetcher"),
		objects: objects,
		decoder: decoder,
	}
}

func (f *Fetcher) FetchText(ctx context.Context, doc store.Document, userID string) (text string) {
	if !doc.HasTextPath() {
		observability.Current().IncTextFetch("no_path")
		return NoTextPathSentinel(doc.ID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			f.log.Error("text fetch panicked", "doc_id", doc.ID, "user_id", userID, "panic", fmt.Sprint(rec))
			observability.Current().IncTextFetch("error")
			text = FetchErrorSentinel(doc.ID)
		}
	}()

	raw, err := f.objects.ReadObject(ctx, doc.TextStoragePath)
	if err != nil {
		f.log.Warn("text fetch failed", "doc_id", doc.ID, "user_id", userID, "path", doc.TextStoragePath, "error", err)
		observability.Current().IncTextFetch("error")
		return FetchErrorSentinel(doc.ID)
	}
	text, err = f.decoder.Decode(raw)
	if err != nil {
		f.log.Warn("text decode failed", "doc_id", doc.ID, "user_id", userID, "bytes", len(raw), "error", err)
		observability.Current().IncTextFetch("error")
		return FetchErrorSentinel(doc.ID)
	}
	observability.Current().IncTextFetch("ok")
	return text
}
