package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolbus-backend/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const path = "schools/school-7/buses/bus-12/trips/1/location"

func record() models.LocationRecord {
	return models.LocationRecord{
		Latitude:  37.347,
		Longitude: -121.93,
		Accuracy:  models.Float64Ptr(5),
		Heading:   90,
		Timestamp: 1700000000000,
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Write(ctx, path, record()))
	got, err = s.Read(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SameLocation(record()))
	assert.Equal(t, 1, s.Writes())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Write(canceled, path, record()), context.Canceled)
	assert.Equal(t, 1, s.Writes())
}

type fakeRedis struct {
	values    map[string]string
	published map[string][]string
	getErr    error
	setErr    error
	ttl       time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, published: map[string][]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = string(value.([]byte))
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "schoolbus:schools:school-7:buses:bus-12:trips:1:location", Key(path))
	assert.Equal(t, Key(path), Key("/"+path+"/"))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newFakeRedis()
	s := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	got, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, got, "missing key reads as absent")

	require.NoError(t, s.Write(ctx, path, record()))
	assert.Equal(t, time.Hour, client.ttl)
	assert.Len(t, client.published[Key(path)], 1)

	got, err = s.Read(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record(), *got)
}

func TestRedisStoreErrors(t *testing.T) {
	client := newFakeRedis()
	s := NewRedisStore(client, 0)
	ctx := context.Background()

	client.getErr = errors.New("connection refused")
	_, err := s.Read(ctx, path)
	assert.ErrorContains(t, err, "connection refused")

	client.getErr = nil
	client.values[Key(path)] = "not json"
	_, err = s.Read(ctx, path)
	assert.Error(t, err)

	client.setErr = errors.New("READONLY")
	assert.ErrorContains(t, s.Write(ctx, path, record()), "READONLY")
	assert.Empty(t, client.published)
}
