package optimizer

import (
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// Segment is one purged (train, embargo, oos) walk-forward window.
type Segment struct {
	TrainStart time.Time
	TrainEnd   time.Time
	EmbargoEnd time.Time
	OOSEnd     time.Time
}

// BuildSegments slides (train, embargo, oos) windows across the bar
// history so training data never overlaps the out-of-sample window: the
// embargo gap purges any lookback/lookahead leakage at the boundary.
func BuildSegments(bars []domain.Bar, trainDays, embargoDays, oosDays int) []Segment {
	if len(bars) == 0 {
		return nil
	}
	trainLen := 24 * time.Hour * time.Duration(trainDays)
	embargoLen := 24 * time.Hour * time.Duration(embargoDays)
	oosLen := 24 * time.Hour * time.Duration(oosDays)
	stepLen := oosLen

	start := bars[0].Timestamp
	end := bars[len(bars)-1].Timestamp

	var segments []Segment
	for trainStart := start; ; trainStart = trainStart.Add(stepLen) {
		trainEnd := trainStart.Add(trainLen)
		embargoEnd := trainEnd.Add(embargoLen)
		oosEnd := embargoEnd.Add(oosLen)
		if oosEnd.After(end) {
			break
		}
		segments = append(segments, Segment{
			TrainStart: trainStart, TrainEnd: trainEnd, EmbargoEnd: embargoEnd, OOSEnd: oosEnd,
		})
	}
	return segments
}

// Slice returns the bars whose timestamp falls in [from, to).
func Slice(bars []domain.Bar, from, to time.Time) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Timestamp.Before(from) && b.Timestamp.Before(to) {
			out = append(out, b)
		}
	}
	return out
}
