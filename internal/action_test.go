package internal_test

import (
	"encoding/json"
	"testing"

	"github.com/koopa0/system-design/14-gomoku-coordinator/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		payload string
		want    internal.Action
		wantErr bool
	}{
		{
			name:    "create room without payload",
			action:  internal.ActionCreateRoom,
			payload: ``,
			want:    &internal.CreateRoomAction{},
		},
		{
			name:    "create room with options",
			action:  internal.ActionCreateRoom,
			payload: `{"room_id":"abc","first_hand":"white"}`,
			want:    &internal.CreateRoomAction{RoomID: "abc", FirstHand: internal.ColorWhite},
		},
		{
			name:    "create room bad color",
			action:  internal.ActionCreateRoom,
			payload: `{"first_hand":"red"}`,
			wantErr: true,
		},
		{
			name:    "move at origin",
			action:  internal.ActionMove,
			payload: `{"room_id":"R1","row":0,"col":0}`,
			want:    &internal.MoveAction{RoomID: "R1", Row: intPtr(0), Col: intPtr(0)},
		},
		{
			name:    "move missing col",
			action:  internal.ActionMove,
			payload: `{"room_id":"R1","row":3}`,
			wantErr: true,
		},
		{
			name:    "join missing room",
			action:  internal.ActionJoinRoom,
			payload: `{}`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			action:  internal.ActionLeaveRoom,
			payload: `{"room_id":"R1","force":true}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			action:  internal.ActionMove,
			payload: `{"room_id":"R1","row":"three","col":1}`,
			wantErr: true,
		},
		{
			name:    "chat requires content",
			action:  internal.ActionSendChat,
			payload: `{"room_id":"R1","content":"  "}`,
			wantErr: true,
		},
		{
			name:    "quick match null payload",
			action:  internal.ActionQuickMatch,
			payload: `null`,
			want:    &internal.QuickMatchAction{},
		},
		{
			name:    "poll negative cursor",
			action:  internal.ActionPoll,
			payload: `{"room_id":"R1","after_id":-1}`,
			wantErr: true,
		},
		{
			name:    "unknown action",
			action:  "resign",
			payload: `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := internal.DecodeAction(tt.action, json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, internal.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.action, got.Name())
		})
	}
}

func intPtr(v int) *int { return &v }

func TestManager_Dispatch(t *testing.T) {
	m, _ := newTestManager(t)

	dispatch := func(player, action, payload string) (any, error) {
		t.Helper()
		act, err := internal.DecodeAction(action, json.RawMessage(payload))
		require.NoError(t, err)
		return m.Dispatch(player, player, act)
	}

	out, err := dispatch("alice", internal.ActionCreateRoom, `{"room_id":"duel"}`)
	require.NoError(t, err)
	entry, ok := out.(internal.RoomEntry)
	require.True(t, ok)
	assert.Equal(t, "DUEL", entry.RoomID)

	_, err = dispatch("bob", internal.ActionJoinRoom, `{"room_id":"duel"}`)
	require.NoError(t, err)

	out, err = dispatch("alice", internal.ActionMove, `{"room_id":"DUEL","row":7,"col":7}`)
	require.NoError(t, err)
	state, ok := out.(internal.GameState)
	require.True(t, ok)
	assert.Equal(t, internal.ColorWhite, state.CurrentTurn)

	_, err = dispatch("alice", internal.ActionMove, `{"room_id":"DUEL","row":7,"col":8}`)
	assert.ErrorIs(t, err, internal.ErrNotYourTurn)

	out, err = dispatch("bob", internal.ActionSendChat, `{"room_id":"DUEL","content":"nice"}`)
	require.NoError(t, err)
	msg, ok := out.(internal.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "bob", msg.AuthorName)

	out, err = dispatch("alice", internal.ActionPoll, `{"room_id":"DUEL"}`)
	require.NoError(t, err)
	poll, ok := out.(internal.PollResult)
	require.True(t, ok)
	assert.Len(t, poll.Messages, 1)

	out, err = dispatch("carol", internal.ActionCancelMatch, ``)
	require.NoError(t, err)
	assert.Equal(t, internal.CancelMatchResult{Cancelled: false}, out)

	out, err = dispatch("alice", internal.ActionLeaveRoom, `{"room_id":"DUEL"}`)
	require.NoError(t, err)
	assert.Equal(t, internal.LeaveResult{Destroyed: false}, out)

	_, err = m.Dispatch("", "", &internal.QuickMatchAction{})
	assert.ErrorIs(t, err, internal.ErrUnauthorized)
}
