package ratelimit

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/cayc/incubator/internal/mocks"
)

type fakeNow struct {
	now time.Time
}

func newLimiter(t *testing.T, cfg Config) (*keyedLimiter, *fakeNow) {
	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	f := &fakeNow{now: time.Unix(1700000000, 0)}
	clock.EXPECT().Now().DoAndReturn(func() time.Time { return f.now }).AnyTimes()
	return NewLimiter(cfg, clock).(*keyedLimiter), f
}

func TestLimiter_Allow(t *testing.T) {
	l, f := newLimiter(t, Config{RequestsPerMinute: 6, Burst: 2})

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")

	// Other clients have their own bucket
	assert.True(t, l.Allow("10.0.0.2"))

	// One token every ten seconds
	f.now = f.now.Add(10 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newLimiter(t, Config{})

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.Empty(t, l.clients)
}

func TestLimiter_EvictsIdleClients(t *testing.T) {
	l, f := newLimiter(t, Config{RequestsPerMinute: 60, Burst: 1, IdleTTL: time.Minute})

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.Len(t, l.clients, 2)

	f.now = f.now.Add(2 * time.Minute)
	assert.True(t, l.Allow("10.0.0.3"))
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "10.0.0.3")
}
