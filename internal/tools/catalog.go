package tools

import (
	"github.com/juniperhq/valet/internal/config"
)

// mcpCatalog is the static catalog of remote tools, one entry per MCP
// service method the assistant may call. Entries only register when
// their service is enabled in config, so the orchestrator never sees a
// tool it cannot reach.
func mcpCatalog() []Spec {
	return []Spec{
		// amap-maps: geocoding, POI search, routing.
		{
			Name:        "maps_geo",
			Description: "Convert an address to coordinates (geocoding).",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_geo",
			Params: map[string]ParamSpec{
				"address": {Type: "string", Required: true, Description: "Address to geocode"},
				"city":    {Type: "string", Description: "City to scope the lookup"},
			},
		},
		{
			Name:        "maps_regeocode",
			Description: "Convert coordinates to an address (reverse geocoding).",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_regeocode",
			Params: map[string]ParamSpec{
				"location": {Type: "string", Required: true, Description: "lon,lat coordinates"},
			},
		},
		{
			Name:        "maps_weather",
			Description: "City weather via the maps service (forecast-capable).",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_weather",
			Params: map[string]ParamSpec{
				"city": {Type: "string", Required: true, Description: "City name or adcode"},
			},
		},
		{
			Name:        "maps_text_search",
			Description: "Search points of interest by keyword.",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_text_search",
			Params: map[string]ParamSpec{
				"keywords": {Type: "string", Required: true, Description: "POI keywords"},
				"city":     {Type: "string", Description: "City to search in"},
			},
		},
		{
			Name:        "maps_search_detail",
			Description: "Fetch details (address, photos) for a POI id.",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_search_detail",
			Params: map[string]ParamSpec{
				"id": {Type: "string", Required: true, Description: "POI id from a search result"},
			},
		},
		{
			Name:        "maps_around_search",
			Description: "Search points of interest around a coordinate.",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_around_search",
			Params: map[string]ParamSpec{
				"location": {Type: "string", Required: true, Description: "lon,lat center"},
				"keywords": {Type: "string", Description: "POI keywords"},
				"radius":   {Type: "string", Description: "Search radius in meters"},
			},
		},
		{
			Name:        "maps_direction_driving",
			Description: "Driving directions between two coordinates.",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_direction_driving",
			Params: map[string]ParamSpec{
				"origin":      {Type: "string", Required: true, Description: "lon,lat origin"},
				"destination": {Type: "string", Required: true, Description: "lon,lat destination"},
			},
		},
		{
			Name:        "maps_distance",
			Description: "Distance between coordinates.",
			Kind:        KindMCP, Service: "amap-maps", Method: "maps_distance",
			Params: map[string]ParamSpec{
				"origins":     {Type: "string", Required: true, Description: "lon,lat origins, | separated"},
				"destination": {Type: "string", Required: true, Description: "lon,lat destination"},
			},
		},

		// 12306: train tickets.
		{
			Name:        "query_train_tickets",
			Description: "Query train tickets between two stations on a date.",
			Kind:        KindMCP, Service: "12306", Method: "query_tickets",
			Params: map[string]ParamSpec{
				"from_station": {Type: "string", Required: true, Description: "Departure station or city"},
				"to_station":   {Type: "string", Required: true, Description: "Arrival station or city"},
				"date":         {Type: "string", Required: true, Description: "Travel date, YYYY-MM-DD"},
			},
		},

		// fetch: generic web page retrieval.
		{
			Name:        "fetch_url",
			Description: "Fetch a web page and return its content as markdown.",
			Kind:        KindMCP, Service: "fetch", Method: "fetch",
			Params: map[string]ParamSpec{
				"url":        {Type: "string", Required: true, Description: "URL to fetch"},
				"max_length": {Type: "integer", Description: "Maximum characters to return"},
			},
		},
	}
}

// RegisterMCPTools registers catalog entries for every enabled service.
func RegisterMCPTools(r *Registry, cfg config.Config) error {
	enabled := make(map[string]bool)
	for _, svc := range cfg.MCP.Services {
		if svc.Enabled {
			enabled[svc.Name] = true
		}
	}
	for _, spec := range mcpCatalog() {
		if !enabled[spec.Service] {
			continue
		}
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
