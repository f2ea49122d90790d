// Package chart renders tool-requested charts to PNG files. Files are
// content-addressed (sha256 of the encoded image) so re-rendering the
// same data never duplicates artifacts, and the envelope only ever
// carries the path reference, never image bytes.
package chart

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/juniperhq/valet/internal/fault"
)

// Kind is the closed set of supported chart types.
type Kind string

const (
	KindBar     Kind = "bar"
	KindLine    Kind = "line"
	KindPie     Kind = "pie"
	KindScatter Kind = "scatter"
)

// Point is one labeled value.
type Point struct {
	Name  string
	Value float64
}

// Renderer writes charts under <resourceDir>/charts and reports paths
// relative to the resource root, matching what the web gateway serves.
type Renderer struct {
	resourceDir string
}

func NewRenderer(resourceDir string) *Renderer {
	return &Renderer{resourceDir: resourceDir}
}

// Output locates a rendered chart on disk and in URL space.
type Output struct {
	// Path is the absolute file path.
	Path string
	// Reference is the stable /resource/-relative reference used in
	// envelope attachments.
	Reference string
}

// Render draws the chart and persists it. Unsupported kinds and empty
// data sets are validation failures, not render errors.
func (r *Renderer) Render(kind Kind, title, xLabel, yLabel string, points []Point) (Output, error) {
	if len(points) == 0 {
		return Output{}, fault.New(fault.KindValidation, "chart data is empty")
	}

	var buf bytes.Buffer
	var err error
	switch kind {
	case KindBar:
		err = renderBar(&buf, title, yLabel, points)
	case KindPie:
		err = renderPie(&buf, title, points)
	case KindLine:
		err = renderLine(&buf, title, xLabel, yLabel, points, false)
	case KindScatter:
		err = renderLine(&buf, title, xLabel, yLabel, points, true)
	default:
		return Output{}, fault.New(fault.KindValidation,
			"unsupported chart type %q, supported: bar, line, pie, scatter", kind)
	}
	if err != nil {
		return Output{}, fmt.Errorf("render %s chart: %w", kind, err)
	}

	sum := sha256.Sum256(buf.Bytes())
	name := hex.EncodeToString(sum[:6]) + ".png"
	dir := filepath.Join(r.resourceDir, "charts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create charts dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if _, statErr := os.Stat(path); statErr != nil {
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return Output{}, fmt.Errorf("write chart: %w", err)
		}
	}
	return Output{Path: path, Reference: "/resource/charts/" + name}, nil
}

func renderBar(buf *bytes.Buffer, title, yLabel string, points []Point) error {
	bars := make([]chart.Value, 0, len(points))
	for _, p := range points {
		bars = append(bars, chart.Value{Label: p.Name, Value: p.Value})
	}
	graph := chart.BarChart{
		Title:    title,
		Width:    800,
		Height:   480,
		BarWidth: 48,
		Bars:     bars,
		YAxis:    chart.YAxis{Name: yLabel},
	}
	return graph.Render(chart.PNG, buf)
}

func renderPie(buf *bytes.Buffer, title string, points []Point) error {
	values := make([]chart.Value, 0, len(points))
	for _, p := range points {
		values = append(values, chart.Value{Label: p.Name, Value: p.Value})
	}
	graph := chart.PieChart{
		Title:  title,
		Width:  600,
		Height: 600,
		Values: values,
	}
	return graph.Render(chart.PNG, buf)
}

func renderLine(buf *bytes.Buffer, title, xLabel, yLabel string, points []Point, scatter bool) error {
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	ticks := make([]chart.Tick, 0, len(points))
	for i, p := range points {
		xs = append(xs, float64(i))
		ys = append(ys, p.Value)
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: p.Name})
	}

	style := chart.Style{}
	if scatter {
		style = chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    5,
		}
	}
	graph := chart.Chart{
		Title:  title,
		Width:  800,
		Height: 480,
		XAxis:  chart.XAxis{Name: xLabel, Ticks: ticks},
		YAxis:  chart.YAxis{Name: yLabel},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style:   style,
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return graph.Render(chart.PNG, buf)
}
