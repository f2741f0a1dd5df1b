// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"math"
	"time"
)

type TallyEntryView struct {
	CandidateID string  `json:"candidate_id"`
	FullName    string  `json:"full_name"`
	Count       int64   `json:"count"`
	Percent     float64 `json:"percent"`
	Rank        int     `json:"rank"`
}

type PositionTallyView struct {
	Position Position         `json:"position"`
	Title    string           `json:"title"`
	Entries  []TallyEntryView `json:"entries"`
}

type TallyView struct {
	ElectionID   string              `json:"election_id"`
	Status       Status              `json:"status,omitempty"`
	Provisional  bool                `json:"provisional"`
	TotalBallots int64               `json:"total_ballots"`
	ComputedAt   time.Time           `json:"computed_at"`
	Positions    []PositionTallyView `json:"positions"`
}

// PresentTally renders a tally for display. Percentages are derived from the
// exact counts here and nowhere else.
func PresentTally(t *Tally, e *Election) TallyView {
	view := TallyView{
		ElectionID:   t.ElectionID,
		TotalBallots: t.TotalBallots,
		ComputedAt:   t.ComputedAt,
		Positions:    make([]PositionTallyView, 0, len(AllPositions())),
	}
	if e != nil {
		view.Status = e.Status
		view.Provisional = e.Status != StatusClosed || e.ReopenCount > 0
	}

	for _, pos := range AllPositions() {
		entries := t.Positions[pos]
		pv := PositionTallyView{
			Position: pos,
			Title:    pos.Title(),
			Entries:  make([]TallyEntryView, 0, len(entries)),
		}
		for _, entry := range entries {
			pv.Entries = append(pv.Entries, TallyEntryView{
				CandidateID: entry.CandidateID,
				FullName:    entry.FullName,
				Count:       entry.Count,
				Percent:     Percent(entry.Count, t.TotalBallots),
				Rank:        entry.Rank,
			})
		}
		view.Positions = append(view.Positions, pv)
	}

	return view
}

// Percent returns count/total as a percentage rounded to one decimal place
func Percent(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(total)) / 10
}
