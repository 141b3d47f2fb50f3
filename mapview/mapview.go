// Package mapview renders an interactive Leaflet map of geometries as a standalone HTML page.
package mapview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
)

const (
	MinZoom = 0
	MaxZoom = 22
)

// LatLng is a (latitude, longitude) coordinate in degrees
type LatLng struct {
	Lat, Lng float64
}

type layer struct {
	Name string
	Data template.JS
}

// Map is a map centered on a coordinate, with vector overlays
type Map struct {
	Title  string
	center LatLng
	zoom   int
	layers []layer
}

// New creates a map centered on the coordinate at the given zoom level (the larger, the more zoomed in)
func New(center LatLng, zoom int) (*Map, error) {
	if center.Lat < -90 || center.Lat > 90 || center.Lng < -180 || center.Lng > 180 {
		return nil, service.Wrapf(service.ErrConfig, "mapview.New: invalid center (%f, %f)", center.Lat, center.Lng)
	}
	if zoom < MinZoom || zoom > MaxZoom {
		return nil, service.Wrapf(service.ErrConfig, "mapview.New: zoom must be in [%d, %d] (got %d)", MinZoom, MaxZoom, zoom)
	}
	return &Map{Title: "Map", center: center, zoom: zoom}, nil
}

type feature struct {
	Type       string                 `json:"type"`
	Geometry   geojson.Geometry       `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// AddGeoJSON adds the geometries as a named vector overlay
func (m *Map) AddGeoJSON(name string, geometries ...geom.Geometry) error {
	fc := featureCollection{Type: "FeatureCollection", Features: []feature{}}
	for _, g := range geometries {
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   geojson.Geometry{Geometry: g},
			Properties: map[string]interface{}{},
		})
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return service.Wrap(service.ErrFormat, fmt.Errorf("AddGeoJSON.Marshal: %w", err))
	}
	m.layers = append(m.layers, layer{Name: name, Data: template.JS(data)})
	return nil
}

var page = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1.0"/>
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { width: 100%; height: 100%; margin: 0; padding: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map").setView([{{.Center.Lat}}, {{.Center.Lng}}], {{.Zoom}});
L.tileLayer("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", {
	maxZoom: 19,
	attribution: "&copy; OpenStreetMap contributors"
}).addTo(map);
var overlays = {};
{{- range .Layers}}
overlays[{{.Name}}] = L.geoJSON({{.Data}}).addTo(map);
{{- end}}
L.control.layers(null, overlays).addTo(map);
</script>
</body>
</html>
`))

// Render writes the HTML page. The output only depends on the center, the zoom and the layers.
func (m *Map) Render(w io.Writer) error {
	err := page.Execute(w, struct {
		Title  string
		Center LatLng
		Zoom   int
		Layers []layer
	}{m.Title, m.center, m.zoom, m.layers})
	if err != nil {
		return fmt.Errorf("Render: %w", err)
	}
	return nil
}

// Save renders the map to the file, overwriting it if it exists
func (m *Map) Save(path string) error {
	var buf bytes.Buffer
	if err := m.Render(&buf); err != nil {
		return service.Wrap(service.ErrFormat, fmt.Errorf("mapview.Save.%w", err))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return service.Wrap(service.ErrStorage, fmt.Errorf("mapview.Save: %w", err))
	}
	return nil
}
