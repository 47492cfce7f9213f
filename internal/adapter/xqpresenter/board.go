package xqpresenter

import (
	"strings"

	"github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

var glyphs = map[xiangqi.Side]map[xiangqi.PieceType]rune{
	xiangqi.Red: {
		xiangqi.General: '帥', xiangqi.Advisor: '仕', xiangqi.Elephant: '相', xiangqi.Horse: '傌',
		xiangqi.Rook: '俥', xiangqi.Cannon: '炮', xiangqi.Soldier: '兵',
	},
	xiangqi.Black: {
		xiangqi.General: '將', xiangqi.Advisor: '士', xiangqi.Elephant: '象', xiangqi.Horse: '馬',
		xiangqi.Rook: '車', xiangqi.Cannon: '砲', xiangqi.Soldier: '卒',
	},
}

const (
	emptyPoint = '＋'
	riverRow   = "  ～～～～～～～～～"
	fileRow    = "  ａｂｃｄｅｆｇｈｉ"
)

// RenderBoard draws the position as full-width text, black on top, ICCS ranks on the left.
// highlight marks the squares of the last move.
func RenderBoard(pieces []xiangqi.Piece, highlight ...xiangqi.Pos) string {
	var grid [xiangqi.Rows][xiangqi.Cols]rune
	for y := range grid {
		for x := range grid[y] {
			grid[y][x] = emptyPoint
		}
	}
	for _, p := range pieces {
		if !p.Pos.InBounds() {
			continue
		}
		if g, ok := glyphs[p.Side][p.Type]; ok {
			grid[p.Pos.Y][p.Pos.X] = g
		}
	}
	marked := map[xiangqi.Pos]bool{}
	for _, h := range highlight {
		marked[h] = true
	}

	var b strings.Builder
	for y := 0; y < xiangqi.Rows; y++ {
		if y == xiangqi.RiverY {
			b.WriteString(riverRow)
			b.WriteByte('\n')
		}
		b.WriteByte(byte('0' + xiangqi.Rows - 1 - y))
		b.WriteByte(' ')
		for x := 0; x < xiangqi.Cols; x++ {
			r := grid[y][x]
			if marked[xiangqi.Pos{X: x, Y: y}] && r == emptyPoint {
				r = '○'
			}
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	b.WriteString(fileRow)
	return b.String()
}
