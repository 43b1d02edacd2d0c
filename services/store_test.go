package services

import (
	"context"

	"buildForgeAPI/internal/docstore"
)

// flakyStore injects one-shot failures on specific paths so tests can
// interrupt a multi-document write between its phases. A consumed failure
// does not repeat, which lets the same test exercise the later retry or
// reconciler heal against the real in-memory data.
type flakyStore struct {
	docstore.Store
	failSet    map[string]error
	failDelete map[string]error
	failTxn    map[string]error
}

func newFlakyStore(inner docstore.Store) *flakyStore {
	return &flakyStore{
		Store:      inner,
		failSet:    make(map[string]error),
		failDelete: make(map[string]error),
		failTxn:    make(map[string]error),
	}
}

func (f *flakyStore) Set(ctx context.Context, path string, doc docstore.Document) error {
	if err, ok := f.failSet[path]; ok {
		delete(f.failSet, path)
		return err
	}
	return f.Store.Set(ctx, path, doc)
}

func (f *flakyStore) Delete(ctx context.Context, path string) error {
	if err, ok := f.failDelete[path]; ok {
		delete(f.failDelete, path)
		return err
	}
	return f.Store.Delete(ctx, path)
}

func (f *flakyStore) RunTransaction(ctx context.Context, path string, fn docstore.UpdateFunc) error {
	if err, ok := f.failTxn[path]; ok {
		delete(f.failTxn, path)
		return err
	}
	return f.Store.RunTransaction(ctx, path, fn)
}
