package tools

import (
	"context"
	"math"
	"sort"

	"github.com/juniperhq/valet/internal/chart"
	"github.com/juniperhq/valet/internal/envelope"
)

// RegisterStatsTool exposes data_statistics: summary numbers over labeled
// values, optionally with a rendered chart attachment.
func RegisterStatsTool(r *Registry, renderer *chart.Renderer) error {
	return r.Register(Spec{
		Name:        "data_statistics",
		Description: "Compute statistics (summary, distribution or comparison) over labeled values, optionally rendering a chart.",
		Kind:        KindLocal,
		Params: map[string]ParamSpec{
			"data": {
				Type: "array", Required: true, Items: chartDataItems,
				Description: `Data rows, e.g. [{"name": "Q1", "value": 30}, {"name": "Q2", "value": 70}]`,
			},
			"analysis_type": {
				Type: "string",
				Enum: []string{"summary", "distribution", "comparison"},
				Description: "Kind of analysis (default summary)",
			},
			"chart_type": {
				Type: "string",
				Enum: []string{"bar", "line", "pie", "scatter"},
				Description: "Also render a chart of this type",
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
			points, err := argPoints(args, "data")
			if err != nil {
				return nil, err
			}

			analysis := argString(args, "analysis_type")
			if analysis == "" {
				analysis = "summary"
			}
			payload := map[string]any{
				"analysis_type": analysis,
				"count":         len(points),
			}
			switch analysis {
			case "distribution":
				mean, median, stddev := distribution(points)
				payload["mean"] = round2(mean)
				payload["median"] = round2(median)
				payload["stddev"] = round2(stddev)
			case "comparison":
				min, max := minMax(points)
				payload["min"] = min
				payload["max"] = max
				payload["range"] = round2(max.Value - min.Value)
			default:
				mean, _, _ := distribution(points)
				min, max := minMax(points)
				payload["mean"] = round2(mean)
				payload["min"] = min.Value
				payload["max"] = max.Value
				payload["total"] = round2(sum(points))
			}

			res := &envelope.Result{Payload: payload}
			if chartType := argString(args, "chart_type"); chartType != "" {
				out, err := renderer.Render(chart.Kind(chartType), "Data statistics", "", "", points)
				if err != nil {
					return nil, err
				}
				res.Attachments = []envelope.Attachment{
					{Type: envelope.AttachmentImage, Reference: out.Reference},
				}
			}
			return res, nil
		},
	})
}

func sum(points []chart.Point) float64 {
	var total float64
	for _, p := range points {
		total += p.Value
	}
	return total
}

func distribution(points []chart.Point) (mean, median, stddev float64) {
	n := float64(len(points))
	mean = sum(points) / n

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		median = (values[mid-1] + values[mid]) / 2
	} else {
		median = values[mid]
	}

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	stddev = math.Sqrt(variance / n)
	return mean, median, stddev
}

func minMax(points []chart.Point) (min, max chart.Point) {
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		if p.Value < min.Value {
			min = p
		}
		if p.Value > max.Value {
			max = p
		}
	}
	return min, max
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
