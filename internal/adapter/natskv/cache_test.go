package natskv

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/rhythm-ls/internal/port/cache/cachetest"
)

// fakeKV overrides the KeyValue methods the cache uses; the embedded
// interface panics if anything else is called.
type fakeKV struct {
	jetstream.KeyValue
	data map[string][]byte
}

type fakeEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

func (f *fakeKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.data[key] = append([]byte(nil), value...)
	return uint64(len(f.data)), nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	if _, ok := f.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(f.data, key)
	return nil
}

func TestCacheCompliance(t *testing.T) {
	cachetest.Run(t, New(&fakeKV{data: map[string][]byte{}}))
}
