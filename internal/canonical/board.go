package canonical

import (
	"github.com/yourorg/hotel-broker/internal/domain"
)

// Guest-facing board labels.
const (
	BoardSummaryLabel = "Meal plan"
	BoardOptionsLabel = "Meal plan options"
	NoMealPlanLabel   = "No meal plan"
)

// BoardRule is one row of the board decision table. Rules are evaluated in
// order and the first whose Match holds decides the summary.
type BoardRule struct {
	Name      string
	Match     func(boards []domain.Board) bool
	Text      string
	HasBoards bool
	// Mutate derives the displayed list from the input; nil keeps it as is.
	Mutate func(boards []domain.Board) []domain.Board
}

// BoardRules is the decision table used by DescribeBoards.
var BoardRules = []BoardRule{
	{
		Name:  "no boards",
		Match: func(b []domain.Board) bool { return len(b) == 0 },
	},
	{
		Name:      "room only",
		Match:     func(b []domain.Board) bool { return len(b) == 1 && b[0].IsRoomOnly() },
		Text:      BoardSummaryLabel,
		HasBoards: true,
		Mutate: func(b []domain.Board) []domain.Board {
			return []domain.Board{{Code: b[0].Code, Name: NoMealPlanLabel}}
		},
	},
	{
		Name:      "single board",
		Match:     func(b []domain.Board) bool { return len(b) == 1 },
		Text:      BoardSummaryLabel,
		HasBoards: true,
	},
	{
		Name:      "room only among options",
		Match:     func(b []domain.Board) bool { return roomOnlyIndex(b) >= 0 },
		Text:      BoardOptionsLabel,
		HasBoards: true,
		Mutate: func(b []domain.Board) []domain.Board {
			out := make([]domain.Board, 0, len(b)-1)
			for _, x := range b {
				if !x.IsRoomOnly() {
					out = append(out, x)
				}
			}
			return out
		},
	},
	{
		Name:      "options",
		Match:     func(b []domain.Board) bool { return len(b) > 1 },
		Text:      BoardOptionsLabel,
		HasBoards: true,
	},
}

func roomOnlyIndex(boards []domain.Board) int {
	for i, b := range boards {
		if b.IsRoomOnly() {
			return i
		}
	}
	return -1
}

// DescribeBoards applies BoardRules to the distinct boards of a hotel. The
// input slice is never modified.
func DescribeBoards(boards []domain.Board) domain.BoardSummary {
	for _, r := range BoardRules {
		if !r.Match(boards) {
			continue
		}
		list := append([]domain.Board(nil), boards...)
		if r.Mutate != nil {
			list = r.Mutate(boards)
		}
		return domain.BoardSummary{Text: r.Text, HasBoards: r.HasBoards, Boards: list}
	}
	return domain.BoardSummary{}
}

// SummarizeBoards describes the distinct boards offered by rates.
func SummarizeBoards(rates []domain.Rate) domain.BoardSummary {
	return DescribeBoards(distinctBoards(rates))
}

// distinctBoards collects the boards of rates in first-seen order, one per
// code. Rates without a board code are skipped.
func distinctBoards(rates []domain.Rate) []domain.Board {
	var boards []domain.Board
	seen := map[string]bool{}
	for _, r := range rates {
		if r.Board.Code == "" || seen[r.Board.Code] {
			continue
		}
		seen[r.Board.Code] = true
		boards = append(boards, r.Board)
	}
	return boards
}
