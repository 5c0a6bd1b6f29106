package story

import "fmt"

// Alignment is per-character timing metadata correlating synthesized audio to
// its source text, in the shape the speech service returns.
type Alignment struct {
	Characters     []string  `json:"characters"`
	CharStartTimes []float64 `json:"character_start_times_seconds"`
	CharEndTimes   []float64 `json:"character_end_times_seconds"`
}

func (a Alignment) Len() int { return len(a.Characters) }

// EndTime is the timestamp of the last character, i.e. the duration of the
// chunk's audio as far as the alignment is concerned.
func (a Alignment) EndTime() float64 {
	if len(a.CharEndTimes) == 0 {
		return 0
	}
	return a.CharEndTimes[len(a.CharEndTimes)-1]
}

func (a Alignment) validate() error {
	if len(a.CharStartTimes) != len(a.Characters) || len(a.CharEndTimes) != len(a.Characters) {
		return fmt.Errorf("alignment arrays disagree: %d characters, %d starts, %d ends",
			len(a.Characters), len(a.CharStartTimes), len(a.CharEndTimes))
	}
	return nil
}

// MergeAlignments concatenates per-chunk alignments into one stream, shifting
// each chunk's timestamps by the accumulated end time of the chunks before
// it. Chunks must be passed in original synthesis order; the merged
// timestamps are then non-decreasing across chunk boundaries.
func MergeAlignments(chunks []Alignment) (Alignment, error) {
	var merged Alignment
	var offset float64
	for i, c := range chunks {
		if err := c.validate(); err != nil {
			return Alignment{}, fmt.Errorf("chunk %d: %w", i, err)
		}
		for j := range c.Characters {
			merged.Characters = append(merged.Characters, c.Characters[j])
			merged.CharStartTimes = append(merged.CharStartTimes, c.CharStartTimes[j]+offset)
			merged.CharEndTimes = append(merged.CharEndTimes, c.CharEndTimes[j]+offset)
		}
		offset += c.EndTime()
	}
	return merged, nil
}
