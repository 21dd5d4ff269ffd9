package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/system-design/14-gomoku-coordinator/internal"
	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker(t *testing.T) {
	p := internal.NewPresenceTracker()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p.Touch("", now)
	p.Touch("alice", now)
	p.Touch("bob", now.Add(4*time.Minute))

	assert.True(t, p.IsOnline("alice"))
	assert.False(t, p.IsOnline(""))
	assert.False(t, p.IsOnline("carol"))

	removed := p.Prune(now.Add(6*time.Minute), 5*time.Minute)
	assert.Equal(t, 1, removed)
	assert.False(t, p.IsOnline("alice"))
	assert.True(t, p.IsOnline("bob"))
}

func TestPresenceTracker_Snapshot(t *testing.T) {
	p := internal.NewPresenceTracker()
	now := time.Now()
	for _, id := range []string{"a", "b", "c", "d"} {
		p.Touch(id, now)
	}

	snap := p.Snapshot(
		map[string]struct{}{"a": {}, "ghost": {}},
		map[string]struct{}{"b": {}, "a": {}},
	)

	assert.Equal(t, internal.PresenceSnapshot{
		Online:   4,
		InRoom:   1,
		Matching: 1,
		Idle:     2,
	}, snap)
}
