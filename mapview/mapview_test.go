package mapview

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/go-spatial/geom"
)

var aoi = geom.Polygon{{{-120, 49}, {-119, 49}, {-119, 50}, {-120, 50}, {-120, 49}}}

func render(t *testing.T) []byte {
	m, err := New(LatLng{49.4, -119.5}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddGeoJSON("my_aoi", aoi); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := m.Render(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRenderDeterministic(t *testing.T) {
	b1, b2 := render(t), render(t)
	if !bytes.Equal(b1, b2) {
		t.Error("two renderings of the same map differ")
	}
	html := string(b1)
	for _, expected := range []string{
		"49.4",
		"-119.5",
		`"type":"Polygon"`,
		`[[-120,49],[-119,49],[-119,50],[-120,50],[-120,49]]`,
		`overlays["my_aoi"]`,
	} {
		if !strings.Contains(html, expected) {
			t.Errorf("%s not found in\n%s", expected, html)
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mymap.html")
	if err := os.WriteFile(path, []byte("previous content, longer than nothing"), 0644); err != nil {
		t.Fatal(err)
	}
	m, _ := New(LatLng{49.4, -119.5}, 8)
	m.AddGeoJSON("my_aoi", aoi)
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, render(t)) {
		t.Error("the saved map differs from the rendered one")
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(LatLng{49.4, -119.5}, 30); !errors.Is(err, service.ErrConfig) {
		t.Errorf("expecting ErrConfig, got %v", err)
	}
	if _, err := New(LatLng{95, -119.5}, 8); !errors.Is(err, service.ErrConfig) {
		t.Errorf("expecting ErrConfig, got %v", err)
	}
}
