package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

type fakeStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	fs := newFakeStore()
	c := newRedisCache(fs, nil)
	fields := &entity.PolicyFields{}
	fields.Set(entity.FieldPolicyNumber, "HO-1234567")
	in := entity.ExtractionResult{Success: true, Method: constants.MethodCloud, Confidence: 0.95, Cost: 0.015, Fields: fields}

	if err := c.Set(context.Background(), "abc", in, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if fs.ttls[keyPrefix+"abc"] != time.Hour {
		t.Fatalf("ttl not passed through: %v", fs.ttls)
	}

	out, ok, err := c.Get(context.Background(), "abc")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if out.Method != constants.MethodCloud || out.Fields.Value(entity.FieldPolicyNumber) != "HO-1234567" {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestRedisCacheMiss(t *testing.T) {
	_, ok, err := newRedisCache(newFakeStore(), nil).Get(context.Background(), "nope")
	if ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCacheCorruptEntryIsMiss(t *testing.T) {
	fs := newFakeStore()
	fs.data[keyPrefix+"bad"] = "{not json"
	_, ok, err := newRedisCache(fs, nil).Get(context.Background(), "bad")
	if ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCacheSurfacesErrors(t *testing.T) {
	fs := newFakeStore()
	fs.getErr = errors.New("connection refused")
	_, _, err := newRedisCache(fs, nil).Get(context.Background(), "k")
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected connection error, got %v", err)
	}
}
