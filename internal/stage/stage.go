package stage

import (
	"fmt"
	"strings"
)

// Stage names one step of the ingest pipeline.
type Stage string

const (
	// Acquire downloads the source media and captures its metadata.
	Acquire Stage = "acquire"
	// Transcribe produces a timestamped transcript from the audio track.
	Transcribe Stage = "transcribe"
	// Merge remuxes the downloaded streams into the final container.
	Merge Stage = "merge"
	// Index loads transcript segments into the search index.
	Index Stage = "index"
)

// Order lists the pipeline stages in execution order.
var Order = []Stage{Acquire, Transcribe, Merge, Index}

// Parse converts a string into a known Stage.
func Parse(value string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case Acquire, Transcribe, Merge, Index:
		return s, nil
	}
	return "", fmt.Errorf("unknown stage %q", value)
}

// Next returns the stage after s, or false when s is the last stage.
func Next(s Stage) (Stage, bool) {
	for i, candidate := range Order {
		if candidate == s && i+1 < len(Order) {
			return Order[i+1], true
		}
	}
	return "", false
}

// First returns the initial pipeline stage.
func First() Stage {
	return Order[0]
}
