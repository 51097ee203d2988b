// Package scoring pairs the two sides of an event so each subject's snapshot
// can carry its own team's score and the opponent's.
package scoring

import "github.com/okian/boxscore/internal/domain/model"

// Lookup resolves a team to its own and its opponent's side line.
type Lookup struct {
	sides [2]model.SideLine
}

// Pair builds a Lookup from an event's side lines. It only succeeds when the
// payload names exactly two distinct teams; any other shape leaves scores
// unset rather than guessing.
func Pair(sides []model.SideLine) (Lookup, bool) {
	distinct := make(map[int64]model.SideLine, len(sides))
	order := make([]int64, 0, 2)
	for _, s := range sides {
		if s.TeamID == 0 {
			continue
		}
		if _, ok := distinct[s.TeamID]; !ok {
			order = append(order, s.TeamID)
		}
		distinct[s.TeamID] = s
	}
	if len(order) != 2 {
		return Lookup{}, false
	}
	return Lookup{sides: [2]model.SideLine{distinct[order[0]], distinct[order[1]]}}, true
}

// For returns the side line for teamID and the other side. ok is false when
// teamID is not one of the paired teams.
func (l Lookup) For(teamID int64) (team, opponent model.SideLine, ok bool) {
	switch teamID {
	case 0:
		return model.SideLine{}, model.SideLine{}, false
	case l.sides[0].TeamID:
		return l.sides[0], l.sides[1], true
	case l.sides[1].TeamID:
		return l.sides[1], l.sides[0], true
	}
	return model.SideLine{}, model.SideLine{}, false
}
