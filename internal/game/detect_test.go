package game

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseBoard builds a board from rows of 'X', 'O' and '.'.
func parseBoard(t *testing.T, rows ...string) Board {
	t.Helper()
	b := NewBoard(len(rows))
	for r, line := range rows {
		require.Len(t, line, len(rows), "row %d", r)
		for c, ch := range line {
			switch ch {
			case 'X':
				b[r][c] = MarkX
			case 'O':
				b[r][c] = MarkO
			}
		}
	}
	return b
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		board     []string
		winLength int
		want      Result
	}{
		{
			name:      "empty board is open",
			board:     []string{"...", "...", "..."},
			winLength: 3,
			want:      Result{},
		},
		{
			name:      "top row win",
			board:     []string{"XXX", "OO.", "..."},
			winLength: 3,
			want:      Result{Winner: "X", Cells: []Cell{{0, 0}, {0, 1}, {0, 2}}},
		},
		{
			name:      "column win",
			board:     []string{"XO.", "XO.", ".OX"},
			winLength: 3,
			want:      Result{Winner: "O", Cells: []Cell{{0, 1}, {1, 1}, {2, 1}}},
		},
		{
			name:      "main diagonal win",
			board:     []string{"XO.", "OX.", "..X"},
			winLength: 3,
			want:      Result{Winner: "X", Cells: []Cell{{0, 0}, {1, 1}, {2, 2}}},
		},
		{
			name:      "anti diagonal on 4x4",
			board:     []string{"X..O", ".XO.", ".OX.", "O..."},
			winLength: 4,
			want:      Result{Winner: "O", Cells: []Cell{{0, 3}, {1, 2}, {2, 1}, {3, 0}}},
		},
		{
			name:      "full board draw",
			board:     []string{"XOX", "XOO", "OXX"},
			winLength: 3,
			want:      Result{Winner: Draw},
		},
		{
			name:      "three in a row is not enough on 4x4",
			board:     []string{"XXX.", "OOO.", "....", "...."},
			winLength: 4,
			want:      Result{},
		},
		{
			name:      "window inside a larger board",
			board:     []string{".....", ".XXXX", ".OOO.", "....O", "....."},
			winLength: 4,
			want:      Result{Winner: "X", Cells: []Cell{{1, 1}, {1, 2}, {1, 3}, {1, 4}}},
		},
		{
			name:      "column on the right edge",
			board:     []string{"OOOX", "...X", "...X", "OOOX"},
			winLength: 4,
			want:      Result{Winner: "X", Cells: []Cell{{0, 3}, {1, 3}, {2, 3}, {3, 3}}},
		},
		{
			name:      "rows are scanned before columns",
			board:     []string{"XXX", "XO.", "XO."},
			winLength: 3,
			want:      Result{Winner: "X", Cells: []Cell{{0, 0}, {0, 1}, {0, 2}}},
		},
		{
			name:      "run longer than board never wins",
			board:     []string{"XXX", "...", "..."},
			winLength: 4,
			want:      Result{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(parseBoard(t, tt.board...), tt.winLength)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Detect() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestDetectFirstWindowWins pins the tie-break: with two complete rows the
// upper one is reported.
func TestDetectFirstWindowWins(t *testing.T) {
	got := Detect(parseBoard(t, "OOO", "XXX", "..."), 3)
	assert.Equal(t, Winner("O"), got.Winner)
	assert.Equal(t, []Cell{{0, 0}, {0, 1}, {0, 2}}, got.Cells)
}

func randomBoard(rng *rand.Rand, size int) Board {
	b := NewBoard(size)
	marks := []Mark{Empty, MarkX, MarkO}
	for r := range b {
		for c := range b[r] {
			b[r][c] = marks[rng.IntN(len(marks))]
		}
	}
	return b
}

func rotate(b Board) Board {
	n := b.Size()
	out := NewBoard(n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out[c][n-1-r] = b[r][c]
		}
	}
	return out
}

func TestDetectWinningCellsLength(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		size := 3 + rng.IntN(4)
		winLength := WinLengthFor(size)
		res := Detect(randomBoard(rng, size), winLength)

		isMarkWin := res.Winner == "X" || res.Winner == "O"
		if isMarkWin {
			require.Len(t, res.Cells, winLength)
		} else {
			require.Empty(t, res.Cells)
		}
	}
}

func TestDetectRotationInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 2000; i++ {
		size := 3 + rng.IntN(3)
		winLength := WinLengthFor(size)
		board := randomBoard(rng, size)
		rotated := rotate(board)

		a := Detect(board, winLength)
		b := Detect(rotated, winLength)
		require.Equal(t, a.Over(), b.Over(), "board %v", board)
		require.Equal(t, a.Winner == Draw, b.Winner == Draw, "board %v", board)

		for _, cell := range b.Cells {
			require.Equal(t, b.Mark(), rotated[cell.Row][cell.Col])
		}
	}
}

func TestDetectRotatedCoordinates(t *testing.T) {
	board := parseBoard(t, "XXX", "OO.", "...")
	n := board.Size()

	res := Detect(rotate(board), 3)
	require.Equal(t, Winner("X"), res.Winner)

	var want []Cell
	for _, c := range []Cell{{0, 0}, {0, 1}, {0, 2}} {
		want = append(want, Cell{Row: c.Col, Col: n - 1 - c.Row})
	}
	assert.ElementsMatch(t, want, res.Cells)
}

func TestDetectDoesNotMutate(t *testing.T) {
	board := parseBoard(t, "XO.", ".X.", "O.X")
	before := board.Clone()
	Detect(board, 3)
	assert.Empty(t, cmp.Diff(before, board))
}
