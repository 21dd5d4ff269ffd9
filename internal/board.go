package internal

// 棋盤引擎：純函式，不持有狀態。
//
// 勝負判定只沿最後一手所在的四條軸線掃描（橫、直、兩條斜線），
// 因此每一手都必須呼叫 CheckWin，不能事後批次檢查。

const (
	BoardSize = 15 // 棋盤邊長
	WinLength = 5  // 連成幾子獲勝
)

// Cell 棋盤格子
type Cell uint8

const (
	CellEmpty Cell = iota
	CellBlack
	CellWhite
)

// Board 15×15 棋盤（值語意，複製即快照）
type Board [BoardSize][BoardSize]Cell

// Color 玩家角色（執黑或執白）
type Color string

const (
	ColorNone  Color = ""
	ColorBlack Color = "black"
	ColorWhite Color = "white"
)

// Opposite 回傳對手顏色
func (c Color) Opposite() Color {
	switch c {
	case ColorBlack:
		return ColorWhite
	case ColorWhite:
		return ColorBlack
	default:
		return ColorNone
	}
}

// Valid 是否為合法的棋子顏色
func (c Color) Valid() bool {
	return c == ColorBlack || c == ColorWhite
}

// Cell 轉換為棋盤格子值
func (c Color) Cell() Cell {
	switch c {
	case ColorBlack:
		return CellBlack
	case ColorWhite:
		return CellWhite
	default:
		return CellEmpty
	}
}

// Color 格子值轉換為顏色，空格回傳 ColorNone
func (c Cell) Color() Color {
	switch c {
	case CellBlack:
		return ColorBlack
	case CellWhite:
		return ColorWhite
	default:
		return ColorNone
	}
}

// axes 四條判定軸線（每條只需一個方向，另一個方向取反）
var axes = [4][2]int{
	{0, 1},  // 橫
	{1, 0},  // 直
	{1, 1},  // 左上 → 右下
	{1, -1}, // 右上 → 左下
}

// EmptyBoard 建立空棋盤
func EmptyBoard() Board {
	return Board{}
}

// inBounds 座標是否在棋盤內
func inBounds(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// IsLegalMove 座標在棋盤內且該格為空
func IsLegalMove(b *Board, row, col int) bool {
	return inBounds(row, col) && b[row][col] == CellEmpty
}

// ApplyMove 回傳落子後的新棋盤
//
// 呼叫者必須先以 IsLegalMove 驗證，這裡只負責寫入。
func ApplyMove(b Board, row, col int, color Color) Board {
	b[row][col] = color.Cell()
	return b
}

// CheckWin 從 (row, col) 沿四條軸線向兩側計算同色連續子數（含該子），
// 任一軸線達到 WinLength 即回傳該顏色，否則回傳 ColorNone。
func CheckWin(b *Board, row, col int, color Color) Color {
	cell := color.Cell()
	if cell == CellEmpty || !inBounds(row, col) || b[row][col] != cell {
		return ColorNone
	}

	for _, axis := range axes {
		dr, dc := axis[0], axis[1]
		count := 1
		count += countRun(b, row, col, dr, dc, cell)
		count += countRun(b, row, col, -dr, -dc, cell)
		if count >= WinLength {
			return color
		}
	}
	return ColorNone
}

// countRun 計算某方向上（不含起點）連續同色子數
func countRun(b *Board, row, col, dr, dc int, cell Cell) int {
	n := 0
	r, c := row+dr, col+dc
	for inBounds(r, c) && b[r][c] == cell {
		n++
		r += dr
		c += dc
	}
	return n
}

// IsBoardFull 棋盤是否已無空格（和局判定）
func IsBoardFull(b *Board) bool {
	for r := range BoardSize {
		for c := range BoardSize {
			if b[r][c] == CellEmpty {
				return false
			}
		}
	}
	return true
}

// OccupiedCount 已落子的格數
func OccupiedCount(b *Board) int {
	n := 0
	for r := range BoardSize {
		for c := range BoardSize {
			if b[r][c] != CellEmpty {
				n++
			}
		}
	}
	return n
}
