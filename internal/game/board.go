package game

import (
	"encoding/json"
	"fmt"
)

// Mark is the symbol a player places on the board. The zero value is an
// empty cell.
type Mark string

const (
	Empty Mark = ""
	MarkX Mark = "X"
	MarkO Mark = "O"
)

// Opponent returns the other player's mark.
func (m Mark) Opponent() Mark {
	if m == MarkX {
		return MarkO
	}
	return MarkX
}

// MarshalJSON encodes empty cells as null so clients can test cells for
// truthiness.
func (m Mark) MarshalJSON() ([]byte, error) {
	if m == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

// UnmarshalJSON accepts null as an empty cell.
func (m *Mark) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = Mark(s)
	return nil
}

// Cell addresses one square on the board.
type Cell struct {
	Row int
	Col int
}

// MarshalJSON encodes a cell as a [row, col] pair.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON decodes a [row, col] pair.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Board is a square grid of marks indexed [row][col].
type Board [][]Mark

// NewBoard returns an empty size x size board.
func NewBoard(size int) Board {
	b := make(Board, size)
	for i := range b {
		b[i] = make([]Mark, size)
	}
	return b
}

// Size returns the board's edge length.
func (b Board) Size() int {
	return len(b)
}

// InBounds reports whether (row, col) lies on the board.
func (b Board) InBounds(row, col int) bool {
	return row >= 0 && row < len(b) && col >= 0 && col < len(b)
}

// Full reports whether every cell holds a mark.
func (b Board) Full() bool {
	for _, row := range b {
		for _, m := range row {
			if m == Empty {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy so snapshots never alias room state.
func (b Board) Clone() Board {
	out := make(Board, len(b))
	for i, row := range b {
		out[i] = append([]Mark(nil), row...)
	}
	return out
}

// WinLengthFor returns the run length needed to win on a board of the
// given size.
func WinLengthFor(size int) int {
	if size == 3 {
		return 3
	}
	return 4
}
