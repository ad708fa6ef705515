package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/docquery/store/memstore"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

func TestFetcher(t *testing.T) {
	objects := memstore.NewObjects()
	objects.Put("u1/a.txt", []byte("plain text body"))
	objects.Put("u1/b.txt", utf16le(t, "wide text body"))
	objects.Fail("u1/broken.txt", errors.New("permission denied"))

	f := NewFetcher(logger.NewNop(), objects, nil)
	ctx := context.Background()

	assert.Equal(t, "plain text body", f.FetchText(ctx, store.Document{ID: "a", TextStoragePath: "u1/a.txt"}, "u1"))
	assert.Equal(t, "wide text body", f.FetchText(ctx, store.Document{ID: "b", TextStoragePath: "u1/b.txt"}, "u1"))

	noPath := f.FetchText(ctx, store.Document{ID: "c"}, "u1")
	assert.Equal(t, NoTextPathSentinel("c"), noPath)
	assert.True(t, IsSentinel(noPath))

	broken := f.FetchText(ctx, store.Document{ID: "d", TextStoragePath: "u1/broken.txt"}, "u1")
	assert.Equal(t, FetchErrorSentinel("d"), broken)
	assert.Contains(t, broken, "d")

	missing := f.FetchText(ctx, store.Document{ID: "e", TextStoragePath: "u1/missing.txt"}, "u1")
	assert.Equal(t, FetchErrorSentinel("e"), missing)
}

func TestFetcherDecoderFailures(t *testing.T) {
	objects := memstore.NewObjects()
	objects.Put("p", []byte("x"))
	doc := store.Document{ID: "doc-1", TextStoragePath: "p"}

	failing := NewFetcher(logger.NewNop(), objects, TextDecoderFunc(func([]byte) (string, error) {
		return "", errors.New("bad encoding")
	}))
	assert.Equal(t, FetchErrorSentinel("doc-1"), failing.FetchText(context.Background(), doc, "u"))

	panicking := NewFetcher(logger.NewNop(), objects, TextDecoderFunc(func([]byte) (string, error) {
		panic("decoder bug")
	}))
	assert.Equal(t, FetchErrorSentinel("doc-1"), panicking.FetchText(context.Background(), doc, "u"))
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel(NoTextPathSentinel("x")))
	assert.True(t, IsSentinel(FetchErrorSentinel("x")))
	assert.False(t, IsSentinel("[Draft] contract"))
	assert.False(t, IsSentinel(""))
}
