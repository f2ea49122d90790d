package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
)

const defaultAmapWeatherURL = "https://restapi.amap.com/v3/weather/weatherInfo"

// WeatherClient queries live weather from the Amap REST API.
type WeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWeatherClient(apiKey string) *WeatherClient {
	return &WeatherClient{
		apiKey:  apiKey,
		baseURL: defaultAmapWeatherURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WeatherReport is the normalized live-weather payload.
type WeatherReport struct {
	City          string `json:"city"`
	Weather       string `json:"weather"`
	Temperature   string `json:"temperature"`
	WindDirection string `json:"wind_direction"`
	WindPower     string `json:"wind_power"`
	Humidity      string `json:"humidity"`
	ReportTime    string `json:"report_time"`
}

type amapWeatherResponse struct {
	Status string `json:"status"`
	Info   string `json:"info"`
	Lives  []struct {
		City          string `json:"city"`
		Weather       string `json:"weather"`
		Temperature   string `json:"temperature"`
		WindDirection string `json:"winddirection"`
		WindPower     string `json:"windpower"`
		Humidity      string `json:"humidity"`
		ReportTime    string `json:"reporttime"`
	} `json:"lives"`
}

// Query fetches the current weather for a city.
func (w *WeatherClient) Query(ctx context.Context, city string) (WeatherReport, error) {
	if w.apiKey == "" {
		return WeatherReport{}, fault.New(fault.KindConfig,
			"weather lookup needs AMAP_API_KEY (config api_keys.amap)")
	}

	q := url.Values{}
	q.Set("key", w.apiKey)
	q.Set("city", city)
	q.Set("extensions", "base")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return WeatherReport{}, fault.Wrap(fault.KindTransient, err, "build weather request")
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return WeatherReport{}, fault.Wrap(fault.KindTransient, err, "weather request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WeatherReport{}, fault.New(fault.KindTransient, "weather API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return WeatherReport{}, fault.Wrap(fault.KindTransient, err, "read weather response")
	}
	var parsed amapWeatherResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return WeatherReport{}, fault.Wrap(fault.KindProtocol, err, "decode weather response")
	}
	if parsed.Status != "1" || len(parsed.Lives) == 0 {
		// Key problems come back in-band, not as HTTP errors.
		if strings.Contains(strings.ToUpper(parsed.Info), "KEY") {
			return WeatherReport{}, fault.New(fault.KindConfig, "weather API rejected credentials: %s", parsed.Info)
		}
		return WeatherReport{}, fault.New(fault.KindProtocol, "weather API error: %s", parsed.Info)
	}

	live := parsed.Lives[0]
	report := WeatherReport{
		City:          live.City,
		Weather:       live.Weather,
		Temperature:   live.Temperature,
		WindDirection: live.WindDirection,
		WindPower:     live.WindPower,
		Humidity:      live.Humidity,
		ReportTime:    strings.TrimRight(live.ReportTime, ":"),
	}
	if report.ReportTime == "" {
		report.ReportTime = time.Now().Format("2006-01-02 15:04:05")
	}
	return report, nil
}

// RegisterWeatherTool exposes get_weather backed by the Amap client.
func RegisterWeatherTool(r *Registry, wc *WeatherClient) error {
	return r.Register(Spec{
		Name:        "get_weather",
		Description: "Get the current weather for a city, e.g. 北京.",
		Kind:        KindLocal,
		Params: map[string]ParamSpec{
			"location": {Type: "string", Required: true, Description: "City name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
			report, err := wc.Query(ctx, argString(args, "location"))
			if err != nil {
				return nil, err
			}
			return &envelope.Result{Payload: report}, nil
		},
	})
}
