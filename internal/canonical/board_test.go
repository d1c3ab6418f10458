package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourorg/hotel-broker/internal/domain"
)

var (
	roomOnly  = domain.Board{Code: domain.RoomOnlyCode, Name: "ROOM ONLY"}
	breakfast = domain.Board{Code: "BB", Name: "BED AND BREAKFAST"}
	halfBoard = domain.Board{Code: "HB", Name: "HALF BOARD"}
)

func TestDescribeBoards(t *testing.T) {
	tests := []struct {
		name   string
		boards []domain.Board
		want   domain.BoardSummary
	}{
		{
			name:   "no boards",
			boards: nil,
			want:   domain.BoardSummary{Text: "", HasBoards: false},
		},
		{
			name:   "only room only is renamed",
			boards: []domain.Board{roomOnly},
			want: domain.BoardSummary{
				Text:      BoardSummaryLabel,
				HasBoards: true,
				Boards:    []domain.Board{{Code: domain.RoomOnlyCode, Name: NoMealPlanLabel}},
			},
		},
		{
			name:   "single board",
			boards: []domain.Board{breakfast},
			want:   domain.BoardSummary{Text: BoardSummaryLabel, HasBoards: true, Boards: []domain.Board{breakfast}},
		},
		{
			name:   "room only removed among options",
			boards: []domain.Board{roomOnly, breakfast},
			want:   domain.BoardSummary{Text: BoardOptionsLabel, HasBoards: true, Boards: []domain.Board{breakfast}},
		},
		{
			name:   "options kept",
			boards: []domain.Board{breakfast, halfBoard},
			want:   domain.BoardSummary{Text: BoardOptionsLabel, HasBoards: true, Boards: []domain.Board{breakfast, halfBoard}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]domain.Board(nil), tt.boards...)
			got := DescribeBoards(in)
			assert.Equal(t, tt.want.Text, got.Text)
			assert.Equal(t, tt.want.HasBoards, got.HasBoards)
			assert.ElementsMatch(t, tt.want.Boards, got.Boards)
			assert.Equal(t, tt.boards, in, "input is not modified")
		})
	}
}

func TestBoardRules_EachRuleReachable(t *testing.T) {
	inputs := [][]domain.Board{
		nil,
		{roomOnly},
		{breakfast},
		{roomOnly, breakfast},
		{breakfast, halfBoard},
	}
	for i, in := range inputs {
		first := -1
		for j, r := range BoardRules {
			if r.Match(in) {
				first = j
				break
			}
		}
		assert.Equal(t, i, first, "input %d should be decided by rule %q", i, BoardRules[i].Name)
	}
}

func TestDistinctBoards(t *testing.T) {
	rates := []domain.Rate{
		{Board: breakfast},
		{Board: roomOnly},
		{Board: breakfast},
		{},
	}
	assert.Equal(t, []domain.Board{breakfast, roomOnly}, distinctBoards(rates))
}
