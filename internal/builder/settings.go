package builder

import (
	"encoding/json"
	"fmt"
	"math"
)

// CanvasSettings is the visual and layout configuration of the page canvas
type CanvasSettings struct {
	Background   string  `json:"background"`
	Padding      float64 `json:"padding"`
	BorderWidth  float64 `json:"borderWidth"`
	BorderColor  string  `json:"borderColor"`
	BorderRadius float64 `json:"borderRadius"`
	Shadow       bool    `json:"shadow"`
	ShowGrid     bool    `json:"showGrid"`
	GridSize     float64 `json:"gridSize"`
	GridColor    string  `json:"gridColor"`
	ExtraWidth   float64 `json:"extraWidth"`
	ExtraHeight  float64 `json:"extraHeight"`
	MinWidth     float64 `json:"minWidth"`
	MinHeight    float64 `json:"minHeight"`
	MaxWidth     float64 `json:"maxWidth"` // 0 is unbounded
	MaxHeight    float64 `json:"maxHeight"`
	Alignment    string  `json:"alignment"` // left, center, right
}

// DefaultCanvasSettings returns the settings of a fresh canvas
func DefaultCanvasSettings() CanvasSettings {
	return CanvasSettings{
		Background:   "#ffffff",
		Padding:      20,
		BorderWidth:  1,
		BorderColor:  "#e5e7eb",
		BorderRadius: 8,
		Shadow:       true,
		ShowGrid:     true,
		GridSize:     20,
		GridColor:    "#f1f5f9",
		ExtraWidth:   200,
		ExtraHeight:  400,
		MinWidth:     1200,
		MinHeight:    800,
		Alignment:    "center",
	}
}

// Merge returns a copy of s with the fields named in patch replaced
func (s CanvasSettings) Merge(patch map[string]any) (CanvasSettings, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return s, err
	}
	out := s
	if err := json.Unmarshal(data, &out); err != nil {
		return s, fmt.Errorf("invalid canvas settings: %w", err)
	}
	switch out.Alignment {
	case "", "left", "center", "right":
	default:
		return s, fmt.Errorf("invalid canvas settings: alignment %q", out.Alignment)
	}
	return out, nil
}

// Bounds turns a widget extent into canvas pixel bounds: extent plus padding
// on both sides plus the extra buffers, clamped to the min and max sizes.
func (s CanvasSettings) Bounds(ext Size) Size {
	return Size{
		Width:  clampSize(ext.Width+2*s.Padding+s.ExtraWidth, s.MinWidth, s.MaxWidth),
		Height: clampSize(ext.Height+2*s.Padding+s.ExtraHeight, s.MinHeight, s.MaxHeight),
	}
}

func clampSize(v, lo, hi float64) float64 {
	v = math.Max(v, lo)
	if hi > 0 {
		v = math.Min(v, hi)
	}
	return v
}
