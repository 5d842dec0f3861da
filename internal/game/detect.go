package game

// Winner records how a game ended.
type Winner string

const (
	NoWinner Winner = ""
	Draw     Winner = "draw"
)

// MarshalJSON encodes NoWinner as null.
func (w Winner) MarshalJSON() ([]byte, error) {
	return Mark(w).MarshalJSON()
}

// Result is the outcome of a Detect call.
type Result struct {
	Winner Winner
	Cells  []Cell
}

// Over reports whether the result ends the game.
func (r Result) Over() bool {
	return r.Winner != NoWinner
}

// Mark returns the winning mark, or Empty for a draw or an open game.
func (r Result) Mark() Mark {
	if r.Winner == Draw {
		return Empty
	}
	return Mark(r.Winner)
}

// direction is a unit step along one of the four line orientations.
type direction struct {
	dr, dc int
}

// Detect looks for a run of winLength identical marks. Windows are scanned
// rows first, then columns, then diagonals by top-left anchor (main before
// anti). The first winning window is returned. A full board with no winner
// is a draw.
func Detect(board Board, winLength int) Result {
	size := board.Size()
	if winLength <= 0 || winLength > size {
		if size > 0 && board.Full() {
			return Result{Winner: Draw}
		}
		return Result{}
	}
	span := size - winLength + 1

	for row := 0; row < size; row++ {
		for col := 0; col < span; col++ {
			if cells, ok := window(board, row, col, direction{0, 1}, winLength); ok {
				return win(board, cells)
			}
		}
	}

	for col := 0; col < size; col++ {
		for row := 0; row < span; row++ {
			if cells, ok := window(board, row, col, direction{1, 0}, winLength); ok {
				return win(board, cells)
			}
		}
	}

	for row := 0; row < span; row++ {
		for col := 0; col < span; col++ {
			if cells, ok := window(board, row, col, direction{1, 1}, winLength); ok {
				return win(board, cells)
			}
			// anti-diagonal shares the anchor's bounding square
			if cells, ok := window(board, row, col+winLength-1, direction{1, -1}, winLength); ok {
				return win(board, cells)
			}
		}
	}

	if board.Full() {
		return Result{Winner: Draw}
	}
	return Result{}
}

// window checks the n cells starting at (row, col) stepping by d. Callers
// guarantee the window stays on the board.
func window(board Board, row, col int, d direction, n int) ([]Cell, bool) {
	first := board[row][col]
	if first == Empty {
		return nil, false
	}
	for i := 1; i < n; i++ {
		if board[row+i*d.dr][col+i*d.dc] != first {
			return nil, false
		}
	}
	cells := make([]Cell, n)
	for i := range cells {
		cells[i] = Cell{Row: row + i*d.dr, Col: col + i*d.dc}
	}
	return cells, true
}

func win(board Board, cells []Cell) Result {
	first := cells[0]
	return Result{Winner: Winner(board[first.Row][first.Col]), Cells: cells}
}
