//go:build !integration

package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// fakeClient is an in-memory stand-in for the redis commands the package
// uses. Lists are stored head-first, matching LPUSH semantics.
type fakeClient struct {
	mu     sync.Mutex
	lists  map[string][]string
	kv     map[string]string
	hashes map[string]map[string]int64
	ttls   map[string]time.Duration
}

var _ Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		lists:  make(map[string][]string),
		kv:     make(map[string]string),
		hashes: make(map[string]map[string]int64),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) LPush(_ context.Context, key string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append([]string{toString(v)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeClient) BRPop(_ context.Context, _ time.Duration, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	if len(l) == 0 {
		return nil, goredis.Nil
	}
	last := l[len(l)-1]
	f.lists[key] = l[:len(l)-1]
	return []string{key, last}, nil
}

func (f *fakeClient) LLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

func (f *fakeClient) LTrim(_ context.Context, key string, start, stop int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	if start < 0 {
		start = 0
	}
	if stop >= int64(len(l)) {
		stop = int64(len(l)) - 1
	}
	if start > stop {
		f.lists[key] = nil
		return nil
	}
	f.lists[key] = l[start : stop+1]
	return nil
}

func (f *fakeClient) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	if stop < 0 {
		stop = int64(len(l)) + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= int64(len(l)) {
		stop = int64(len(l)) - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

func (f *fakeClient) DrainList(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.lists[key]
	delete(f.lists, key)
	return out, nil
}

func (f *fakeClient) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.lists, k)
		delete(f.kv, k)
		delete(f.hashes, k)
	}
	return nil
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kv[key]; ok {
		return false, nil
	}
	f.kv[key] = toString(value)
	f.ttls[key] = expiration
	return true, nil
}

func (f *fakeClient) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[key] == nil {
		f.hashes[key] = make(map[string]int64)
	}
	f.hashes[key][field] += incr
	return f.hashes[key][field], nil
}

func (f *fakeClient) Expire(_ context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = expiration
	return nil
}

func (f *fakeClient) Close() error { return nil }

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
