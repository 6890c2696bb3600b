package cache

import "context"

// Tiered layers a Memory store in front of a persistent store. Reads
// check memory first and backfill it on a persistent hit; writes go to
// both layers.
type Tiered struct {
	memory     *Memory
	persistent Store
}

// NewTiered combines a memory layer with a persistent store.
func NewTiered(memory *Memory, persistent Store) *Tiered {
	return &Tiered{memory: memory, persistent: persistent}
}

// Get returns the payload stored under key, or ErrMiss.
func (t *Tiered) Get(ctx context.Context, key Key, validate Validator) ([]byte, error) {
	if payload, err := t.memory.Get(ctx, key, validate); err == nil {
		return payload, nil
	}

	payload, err := t.persistent.Get(ctx, key, validate)
	if err != nil {
		return nil, err
	}

	_ = t.memory.Put(ctx, key, payload)
	return payload, nil
}

// Put stores payload in both layers. The memory write cannot fail, so
// only the persistent write's outcome is reported.
func (t *Tiered) Put(ctx context.Context, key Key, payload []byte) error {
	_ = t.memory.Put(ctx, key, payload)
	return t.persistent.Put(ctx, key, payload)
}
