package internal_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-gomoku-coordinator/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentMovesSameRoom 同一房間同時落子只有一手成功
func TestConcurrentMovesSameRoom(t *testing.T) {
	m, _ := newTestManager(t)
	roomID := startGame(t, m, "alice", "bob")

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		wrongTurn atomic.Int32
	)
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Move(roomID, "alice", i/internal.BoardSize, i%internal.BoardSize)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, internal.ErrNotYourTurn):
				wrongTurn.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(49), wrongTurn.Load())

	room, err := m.GetRoom(roomID)
	require.NoError(t, err)
	state := room.State()
	assert.Equal(t, 1, internal.OccupiedCount(&state.Board))
	assert.Equal(t, internal.ColorWhite, state.CurrentTurn)
}

// TestConcurrentJoinRoleExclusive 同時加入只有一人取得空位
func TestConcurrentJoinRoleExclusive(t *testing.T) {
	m, _ := newTestManager(t)
	entry, err := m.CreateRoom("host", "", internal.ColorNone)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		joined atomic.Int32
		full   atomic.Int32
	)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.JoinRoom(entry.RoomID, fmt.Sprintf("guest-%d", i))
			switch {
			case err == nil:
				joined.Add(1)
			case errors.Is(err, internal.ErrRoomFull):
				full.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), joined.Load())
	assert.Equal(t, int32(19), full.Load())
}

// TestConcurrentQuickMatch 每位玩家最多出現在一個配對房間
func TestConcurrentQuickMatch(t *testing.T) {
	m, _ := newTestManager(t)

	const players = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		waiting []string
	)
	for i := range players {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := m.QuickMatch(id)
			if assert.NoError(t, err) && res.Status == internal.MatchStatusWaiting {
				mu.Lock()
				waiting = append(waiting, id)
				mu.Unlock()
			}
		}(fmt.Sprintf("p%d", i))
	}
	wg.Wait()

	// 只有等待方再呼叫一次以取得通知
	for _, id := range waiting {
		_, err := m.QuickMatch(id)
		require.NoError(t, err)
	}

	seen := make(map[string]string)
	for _, room := range m.ListRooms() {
		assert.Equal(t, internal.StatusPlaying, room.Status)
		assert.NotEqual(t, room.Black, room.White)
		for _, id := range []string{room.Black, room.White} {
			if prev, ok := seen[id]; ok {
				t.Fatalf("player %s in rooms %s and %s", id, prev, room.RoomID)
			}
			seen[id] = room.RoomID
		}
	}
	assert.LessOrEqual(t, m.Stats().Queued, players-2*len(m.ListRooms()))
}

// TestStress_RoomsWithSweeps 多房間對局與清理同時進行
func TestStress_RoomsWithSweeps(t *testing.T) {
	if testing.Short() {
		t.Skip("跳過壓力測試")
	}

	cfg := internal.DefaultCoordinatorConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	cfg.EmptyRoomGrace = time.Millisecond
	recorder := &recordingRecorder{}
	m := internal.NewManager(cfg, testLogger(), internal.WithOutcomeRecorder(recorder))
	m.Start()
	defer m.Stop()

	const rooms = 50
	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			black := fmt.Sprintf("b%d", i)
			white := fmt.Sprintf("w%d", i)

			entry, err := m.CreateRoom(black, "", internal.ColorBlack)
			if !assert.NoError(t, err) {
				return
			}
			if _, err := m.JoinRoom(entry.RoomID, white); !assert.NoError(t, err) {
				return
			}

			for c := 0; c < 5; c++ {
				_, err := m.Move(entry.RoomID, black, 7, c)
				if !assert.NoError(t, err) {
					return
				}
				if c < 4 {
					_, err = m.Move(entry.RoomID, white, 8, c)
					if !assert.NoError(t, err) {
						return
					}
				}
				_, _ = m.SendChat(entry.RoomID, white, "", "move")
			}

			_, err = m.LeaveRoom(entry.RoomID, black)
			assert.NoError(t, err)
			res, err := m.LeaveRoom(entry.RoomID, white)
			assert.NoError(t, err)
			assert.True(t, res.Destroyed)
		}(i)
	}
	wg.Wait()

	assert.Len(t, recorder.Outcomes(), rooms)
	assert.Eventually(t, func() bool { return m.Stats().TotalRooms == 0 }, time.Second, 10*time.Millisecond)
}

func BenchmarkManager_Move(b *testing.B) {
	m := internal.NewManager(internal.DefaultCoordinatorConfig(), testLogger())
	defer m.Stop()

	entry, err := m.CreateRoom("alice", "", internal.ColorBlack)
	require.NoError(b, err)
	_, err = m.JoinRoom(entry.RoomID, "bob")
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// 落子不合法也會經過完整的鎖與檢查路徑
		_, _ = m.Move(entry.RoomID, "alice", -1, -1)
	}
}

func BenchmarkCheckWin(b *testing.B) {
	board := internal.EmptyBoard()
	for c := range 4 {
		board = internal.ApplyMove(board, 7, c, internal.ColorBlack)
	}
	board = internal.ApplyMove(board, 7, 4, internal.ColorBlack)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		internal.CheckWin(&board, 7, 4, internal.ColorBlack)
	}
}

func BenchmarkManager_Poll(b *testing.B) {
	m := internal.NewManager(internal.DefaultCoordinatorConfig(), testLogger())
	defer m.Stop()

	entry, err := m.CreateRoom("alice", "", internal.ColorBlack)
	require.NoError(b, err)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = m.Poll(entry.RoomID, "alice", 0)
		}
	})
}
