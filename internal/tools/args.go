package tools

import (
	"encoding/json"
	"fmt"

	"github.com/juniperhq/valet/internal/chart"
	"github.com/juniperhq/valet/internal/fault"
)

// Argument extraction helpers. Arguments have already passed schema
// validation, so missing optional values are normal and type surprises
// are not; numbers arrive as json.Number from the validator's decoder.

func argString(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

func argInt64(args map[string]any, name string) (int64, bool) {
	switch v := args[name].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func argFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// argPoints interprets the flexible data shapes callers send for charts
// and statistics: {name, value} objects, {x, y} objects, single-entry
// maps, or [label, value] pairs.
func argPoints(args map[string]any, name string) ([]chart.Point, error) {
	raw, ok := args[name].([]any)
	if !ok {
		return nil, fault.New(fault.KindValidation, "%s must be an array", name)
	}
	points := make([]chart.Point, 0, len(raw))
	for i, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			p, err := pointFromMap(v)
			if err != nil {
				return nil, fault.New(fault.KindValidation, "%s[%d]: %v", name, i, err)
			}
			points = append(points, p)
		case []any:
			if len(v) < 2 {
				return nil, fault.New(fault.KindValidation, "%s[%d]: pair needs a label and a value", name, i)
			}
			f, ok := argFloat(v[1])
			if !ok {
				return nil, fault.New(fault.KindValidation, "%s[%d]: value is not numeric", name, i)
			}
			points = append(points, chart.Point{Name: fmt.Sprintf("%v", v[0]), Value: f})
		default:
			return nil, fault.New(fault.KindValidation,
				"%s[%d]: expected an object with name and value fields", name, i)
		}
	}
	if len(points) == 0 {
		return nil, fault.New(fault.KindValidation, "%s is empty", name)
	}
	return points, nil
}

func pointFromMap(m map[string]any) (chart.Point, error) {
	if name, ok := m["name"].(string); ok {
		if f, ok := argFloat(m["value"]); ok {
			return chart.Point{Name: name, Value: f}, nil
		}
		return chart.Point{}, fmt.Errorf("value is not numeric")
	}
	if x, ok := m["x"]; ok {
		if f, ok := argFloat(m["y"]); ok {
			return chart.Point{Name: fmt.Sprintf("%v", x), Value: f}, nil
		}
		return chart.Point{}, fmt.Errorf("y is not numeric")
	}
	// Single-entry map: {"A": 40}.
	if len(m) == 1 {
		for k, v := range m {
			if f, ok := argFloat(v); ok {
				return chart.Point{Name: k, Value: f}, nil
			}
		}
	}
	return chart.Point{}, fmt.Errorf("expected name/value or x/y fields")
}
