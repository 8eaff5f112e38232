package inference

import "errors"

// ErrPredictionFailed is returned internally when the trained-model path
// cannot be used for a window; the engine always falls back to the
// heuristic formulas for that window rather than propagating this to the
// caller.
var ErrPredictionFailed = errors.New("inference: prediction failed")
