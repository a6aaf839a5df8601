package builder

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Props is a widget's property bag. Keys are type dependent; position and
// size live under "x", "y", "width" and "height".
type Props map[string]any

// Clone returns a shallow copy
func (p Props) Clone() Props {
	if p == nil {
		return Props{}
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with patch applied on top
func (p Props) Merge(patch Props) Props {
	out := p.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Number reads a numeric prop. Strings like "120" or "120px" count;
// "auto", "" and anything non-numeric do not.
func (p Props) Number(key string) (float64, bool) {
	return parseNumber(p[key])
}

// Dimension reads a size prop as pixels or percent
func (p Props) Dimension(key string) (Dimension, bool) {
	return parseDimension(p[key])
}

// Int reads an integer prop, truncating fractions
func (p Props) Int(key string) (int, bool) {
	v, ok := parseNumber(p[key])
	if !ok {
		return 0, false
	}
	return int(v), true
}

// String reads a string prop
func (p Props) String(key string) string {
	s, _ := p[key].(string)
	return s
}

func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "px"))
		if s == "" || s == "auto" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func parseDimension(v any) (Dimension, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, "%") {
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
			if err != nil {
				return Dimension{}, false
			}
			return Pct(f), true
		}
	}
	f, ok := parseNumber(v)
	if !ok {
		return Dimension{}, false
	}
	return Px(f), true
}
