package importer

import (
	"context"

	"github.com/sells-group/geonames-cli/internal/model"
	"github.com/sells-group/geonames-cli/internal/store"
)

// placeBatcher accumulates resolved places and commits them in
// transactional batches. A crash loses at most the current batch.
type placeBatcher struct {
	st      store.Store
	size    int
	buf     []model.ResolvedPlace
	written int64
}

func newPlaceBatcher(st store.Store, size int) *placeBatcher {
	return &placeBatcher{st: st, size: size, buf: make([]model.ResolvedPlace, 0, size)}
}

func (b *placeBatcher) add(ctx context.Context, p *model.ResolvedPlace) error {
	b.buf = append(b.buf, *p)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *placeBatcher) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.st.WritePlaces(ctx, b.buf); err != nil {
		return err
	}
	b.written += int64(len(b.buf))
	b.buf = b.buf[:0]
	return nil
}

// nameBatcher is the names-table counterpart of placeBatcher.
type nameBatcher struct {
	st      store.Store
	size    int
	buf     []model.NameRecord
	written int64
}

func newNameBatcher(st store.Store, size int) *nameBatcher {
	return &nameBatcher{st: st, size: size, buf: make([]model.NameRecord, 0, size)}
}

func (b *nameBatcher) add(ctx context.Context, n *model.NameRecord) error {
	b.buf = append(b.buf, *n)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *nameBatcher) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.st.WriteNames(ctx, b.buf); err != nil {
		return err
	}
	b.written += int64(len(b.buf))
	b.buf = b.buf[:0]
	return nil
}
