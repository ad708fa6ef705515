// Package memstore provides in-memory document and object stores for tests and local runs.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
)

type Documents struct {
	mu     sync.RWMutex
	byUser map[string][]store.Document
	Err    error
}

func NewDocuments() *Documents {
	return &Documents{byUser: map[string][]store.Document{}}
}

func (d *Documents) Add(userID string, docs ...store.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byUser[userID] = append(d.byUser[userID], docs...)
}

func (d *Documents) ListDocuments(ctx context.Context, userID string) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	src := d.byUser[userID]
	out := make([]store.Document, len(src))
	copy(out, src)
	return out, nil
}

type Objects struct {
	mu      sync.RWMutex
	objects map[string][]byte
	errs    map[string]error
	reads   map[string]*int64
}

func NewObjects() *Objects {
	return &Objects{
		objects: map[string][]byte{},
		errs:    map[string]error{},
		reads:   map[string]*int64{},
	}
}

func (o *Objects) Put(path string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[path] = data
}

// Fail makes reads of path return err.
func (o *Objects) Fail(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[path] = err
}

// Reads reports how many times path was read.
func (o *Objects) Reads(path string) int64 {
	o.mu.RLock()
	c := o.reads[path]
	o.mu.RUnlock()
	if c == nil {
		return 0
	}
	return atomic.LoadInt64(c)
}

func (o *Objects) ReadObject(ctx context.Context, path string) ([]byte, error) {
	o.mu.Lock()
	c := o.reads[path]
	if c == nil {
		c = new(int64)
		o.reads[path] = c
	}
	o.mu.Unlock()
	atomic.AddInt64(c, 1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if err := o.errs[path]; err != nil {
		return nil, err
	}
	b, ok := o.objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrObjectNotFound, path)
	}
	return b, nil
}
