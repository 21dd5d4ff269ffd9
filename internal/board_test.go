package internal_test

import (
	"testing"

	"github.com/koopa0/system-design/14-gomoku-coordinator/internal"
	"github.com/stretchr/testify/assert"
)

// place 依序落子（不檢查合法性）
func place(b internal.Board, color internal.Color, cells ...[2]int) internal.Board {
	for _, c := range cells {
		b = internal.ApplyMove(b, c[0], c[1], color)
	}
	return b
}

func TestIsLegalMove(t *testing.T) {
	b := internal.EmptyBoard()
	b = internal.ApplyMove(b, 7, 7, internal.ColorBlack)

	tests := []struct {
		name     string
		row, col int
		expected bool
	}{
		{"empty cell", 0, 0, true},
		{"last cell", internal.BoardSize - 1, internal.BoardSize - 1, true},
		{"occupied", 7, 7, false},
		{"negative row", -1, 3, false},
		{"negative col", 3, -1, false},
		{"row out of range", internal.BoardSize, 0, false},
		{"col out of range", 0, internal.BoardSize, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, internal.IsLegalMove(&b, tt.row, tt.col))
		})
	}
}

func TestApplyMove_ReturnsCopy(t *testing.T) {
	original := internal.EmptyBoard()
	next := internal.ApplyMove(original, 3, 4, internal.ColorWhite)

	assert.Equal(t, internal.CellEmpty, original[3][4])
	assert.Equal(t, internal.CellWhite, next[3][4])
	assert.Equal(t, 1, internal.OccupiedCount(&next))
}

func TestCheckWin(t *testing.T) {
	tests := []struct {
		name     string
		stones   [][2]int
		last     [2]int
		expected internal.Color
	}{
		{
			name:     "horizontal five",
			stones:   [][2]int{{7, 3}, {7, 4}, {7, 5}, {7, 6}, {7, 7}},
			last:     [2]int{7, 5},
			expected: internal.ColorBlack,
		},
		{
			name:     "vertical five",
			stones:   [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}},
			last:     [2]int{4, 0},
			expected: internal.ColorBlack,
		},
		{
			name:     "main diagonal five",
			stones:   [][2]int{{2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 6}},
			last:     [2]int{2, 2},
			expected: internal.ColorBlack,
		},
		{
			name:     "anti diagonal five",
			stones:   [][2]int{{10, 4}, {9, 5}, {8, 6}, {7, 7}, {6, 8}},
			last:     [2]int{8, 6},
			expected: internal.ColorBlack,
		},
		{
			name:     "overline counts",
			stones:   [][2]int{{5, 1}, {5, 2}, {5, 3}, {5, 4}, {5, 5}, {5, 6}},
			last:     [2]int{5, 6},
			expected: internal.ColorBlack,
		},
		{
			name:     "four is not enough",
			stones:   [][2]int{{7, 3}, {7, 4}, {7, 5}, {7, 6}},
			last:     [2]int{7, 6},
			expected: internal.ColorNone,
		},
		{
			name:     "edge run of five",
			stones:   [][2]int{{14, 10}, {14, 11}, {14, 12}, {14, 13}, {14, 14}},
			last:     [2]int{14, 14},
			expected: internal.ColorBlack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := place(internal.EmptyBoard(), internal.ColorBlack, tt.stones...)
			got := internal.CheckWin(&b, tt.last[0], tt.last[1], internal.ColorBlack)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCheckWin_BrokenByOpponent(t *testing.T) {
	b := place(internal.EmptyBoard(), internal.ColorBlack, [2]int{7, 3}, [2]int{7, 4}, [2]int{7, 6}, [2]int{7, 7})
	b = internal.ApplyMove(b, 7, 5, internal.ColorWhite)

	assert.Equal(t, internal.ColorNone, internal.CheckWin(&b, 7, 7, internal.ColorBlack))
	assert.Equal(t, internal.ColorNone, internal.CheckWin(&b, 7, 5, internal.ColorWhite))
}

func TestIsBoardFull(t *testing.T) {
	b := internal.EmptyBoard()
	assert.False(t, internal.IsBoardFull(&b))

	for r := range internal.BoardSize {
		for c := range internal.BoardSize {
			color := internal.ColorBlack
			if (r+c)%2 == 0 {
				color = internal.ColorWhite
			}
			b = internal.ApplyMove(b, r, c, color)
		}
	}
	assert.True(t, internal.IsBoardFull(&b))
	assert.Equal(t, internal.BoardSize*internal.BoardSize, internal.OccupiedCount(&b))
}

func TestColor(t *testing.T) {
	assert.Equal(t, internal.ColorWhite, internal.ColorBlack.Opposite())
	assert.Equal(t, internal.ColorBlack, internal.ColorWhite.Opposite())
	assert.True(t, internal.ColorBlack.Valid())
	assert.False(t, internal.ColorNone.Valid())
	assert.False(t, internal.Color("red").Valid())
	assert.Equal(t, internal.ColorWhite, internal.ColorWhite.Cell().Color())
}
