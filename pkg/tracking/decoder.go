package tracking

import (
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Detection is one object-detector result as sent by the browser:
// the target's pixel position and the frame size it was measured in.
type Detection struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Label string  `json:"label,omitempty"`
}

// Coordinate is a target position relative to frame center, each axis in [-1, 1].
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// wireDetection distinguishes absent fields from zeros.
type wireDetection struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	W     *float64 `json:"w"`
	H     *float64 `json:"h"`
	Label string   `json:"label"`
}

// ParseDetection decodes a data-channel message.
// Missing x, y, w or h is reported as ErrMalformedInput.
func ParseDetection(data []byte) (Detection, error) {
	var w wireDetection
	if err := json.Unmarshal(data, &w); err != nil {
		return Detection{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	switch {
	case w.X == nil:
		return Detection{}, fmt.Errorf("%w: missing x", ErrMalformedInput)
	case w.Y == nil:
		return Detection{}, fmt.Errorf("%w: missing y", ErrMalformedInput)
	case w.W == nil:
		return Detection{}, fmt.Errorf("%w: missing w", ErrMalformedInput)
	case w.H == nil:
		return Detection{}, fmt.Errorf("%w: missing h", ErrMalformedInput)
	}
	return Detection{X: *w.X, Y: *w.Y, W: *w.W, H: *w.H, Label: w.Label}, nil
}

// Decode converts a detection into a normalized target.
// The horizontal axis is inverted because the camera image is mirrored.
// Results are clamped to [-1, 1] so targets outside the frame pin to the edge.
func Decode(d Detection) (Coordinate, error) {
	for _, v := range [...]float64{d.X, d.Y, d.W, d.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Coordinate{}, fmt.Errorf("%w: non-finite value", ErrMalformedInput)
		}
	}
	if d.W <= 0 {
		return Coordinate{}, fmt.Errorf("%w: frame width must be positive, got %v", ErrMalformedInput, d.W)
	}
	if d.H <= 0 {
		return Coordinate{}, fmt.Errorf("%w: frame height must be positive, got %v", ErrMalformedInput, d.H)
	}

	return Coordinate{
		X: clamp(-((d.X/d.W)*2 - 1.0)),
		Y: clamp((d.Y/d.H)*2 - 1.0),
	}, nil
}

// DecodeMessage parses and decodes one data-channel message.
func DecodeMessage(data []byte) (Detection, Coordinate, error) {
	d, err := ParseDetection(data)
	if err != nil {
		return Detection{}, Coordinate{}, err
	}
	c, err := Decode(d)
	if err != nil {
		return d, Coordinate{}, err
	}
	return d, c, nil
}

// clamp limits a value to [-1, 1]
func clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
