package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all valet metric instruments.
type Metrics struct {
	ToolCallDuration metric.Float64Histogram
	ToolCallErrors   metric.Int64Counter
	ToolCallRetries  metric.Int64Counter
	LLMCallDuration  metric.Float64Histogram
	ChatTurns        metric.Int64Counter
	ActiveCalls      metric.Int64UpDownCounter
}

// NewMetrics creates the instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ToolCallDuration, err = meter.Float64Histogram("valet.tool.duration",
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolCallErrors, err = meter.Int64Counter("valet.tool.errors",
		metric.WithDescription("Tool calls that returned an error envelope"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolCallRetries, err = meter.Int64Counter("valet.tool.retries",
		metric.WithDescription("Retry attempts after transient service failures"),
	)
	if err != nil {
		return nil, err
	}

	m.LLMCallDuration, err = meter.Float64Histogram("valet.llm.duration",
		metric.WithDescription("Model API call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ChatTurns, err = meter.Int64Counter("valet.chat.turns",
		metric.WithDescription("Completed conversation turns"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveCalls, err = meter.Int64UpDownCounter("valet.dispatch.active",
		metric.WithDescription("Tool calls currently executing"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
