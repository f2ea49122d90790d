package tools

import (
	"context"

	"github.com/juniperhq/valet/internal/chart"
	"github.com/juniperhq/valet/internal/envelope"
)

var chartDataItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":  map[string]any{"type": "string"},
		"value": map[string]any{"type": "number"},
	},
}

// RegisterChartTool exposes generate_chart. The rendered PNG is referenced
// as an attachment; bytes never enter the envelope.
func RegisterChartTool(r *Registry, renderer *chart.Renderer) error {
	return r.Register(Spec{
		Name:        "generate_chart",
		Description: "Render a chart from labeled data points and return an image reference.",
		Kind:        KindLocal,
		Params: map[string]ParamSpec{
			"type": {
				Type: "string", Required: true,
				Enum:        []string{"bar", "line", "pie", "scatter"},
				Description: "Chart type",
			},
			"data": {
				Type: "array", Required: true, Items: chartDataItems,
				Description: `Data points, e.g. [{"name": "A", "value": 40}, {"name": "B", "value": 60}]`,
			},
			"title":   {Type: "string", Description: "Chart title"},
			"x_label": {Type: "string", Description: "X axis label"},
			"y_label": {Type: "string", Description: "Y axis label"},
		},
		Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
			points, err := argPoints(args, "data")
			if err != nil {
				return nil, err
			}
			out, err := renderer.Render(
				chart.Kind(argString(args, "type")),
				argString(args, "title"),
				argString(args, "x_label"),
				argString(args, "y_label"),
				points,
			)
			if err != nil {
				return nil, err
			}
			return &envelope.Result{
				Payload: map[string]any{
					"chart_type": argString(args, "type"),
					"points":     len(points),
				},
				Attachments: []envelope.Attachment{
					{Type: envelope.AttachmentImage, Reference: out.Reference},
				},
			}, nil
		},
	})
}
