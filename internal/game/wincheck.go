package game

import "fmt"

type outcome struct {
	win      bool
	defeated bool
	reason   string
}

func (o outcome) terminal() bool { return o.win || o.defeated }

// checkWin evaluates the win condition, forcing a loss when the round
// limit is exhausted without a win. A satisfied win condition takes
// precedence even on the final allowed round.
func checkWin(r *Room) outcome {
	if mr := r.Settings.MaxRounds; mr > 0 && len(r.Rounds) >= mr {
		if o := checkWinCondition(r); o.win {
			return o
		}
		return outcome{
			defeated: true,
			reason:   fmt.Sprintf("max rounds (%d) reached without satisfying win condition", mr),
		}
	}
	return checkWinCondition(r)
}

func checkWinCondition(r *Room) outcome {
	wc := r.Settings.WinCondition
	switch wc.Type {
	case WinCount:
		n := 0
		for i := range r.Rounds {
			if u := r.Rounds[i].Unanimous; u != nil && *u {
				n++
			}
		}
		if n >= wc.Value {
			return outcome{win: true, reason: fmt.Sprintf("reached %d unanimous rounds", wc.Value)}
		}
	case WinConsecutive:
		// Scan newest to oldest: unjudged rounds are skipped, the first
		// non-unanimous round ends the streak.
		streak := 0
		for i := len(r.Rounds) - 1; i >= 0; i-- {
			u := r.Rounds[i].Unanimous
			if u == nil {
				continue
			}
			if !*u {
				break
			}
			streak++
		}
		if streak >= wc.Value {
			return outcome{win: true, reason: fmt.Sprintf("reached %d consecutive unanimous rounds", wc.Value)}
		}
	}
	return outcome{}
}
