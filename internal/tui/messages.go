package tui

import "github.com/Veraticus/food-classifier/internal/model"

// selectedMsg reports the outcome of resolving a selection reserved under
// ticket. gen is the slot generation the image was installed as.
type selectedMsg struct {
	err    error
	input  model.ImageInput
	ticket uint64
	gen    uint64
}

// predictedMsg carries the prediction computed for generation gen.
type predictedMsg struct {
	err    error
	result *model.PredictionResult
	gen    uint64
}

// recordedMsg reports whether a prediction was saved to history.
type recordedMsg struct {
	err error
}
