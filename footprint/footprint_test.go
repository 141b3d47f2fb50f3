package footprint

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/go-spatial/geom"
	"github.com/paulsmith/gogeos/geos"
)

const myAOI = `{
"type": "FeatureCollection",
"name": "my_aoi",
"crs": { "type": "name", "properties": { "name": "urn:ogc:def:crs:EPSG::4326" } },
"features": [
{ "type": "Feature", "properties": { "Name": "site" }, "geometry": { "type": "Polygon", "coordinates": [ [ [ -120.0, 49.0 ], [ -119.0, 49.0 ], [ -119.0, 50.0 ], [ -120.0, 50.0 ], [ -120.0, 49.0 ] ] ] } }
]
}`

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "my_aoi.geojson")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOnePolygon(t *testing.T) {
	fp, err := Load(writeFile(t, myAOI))
	if err != nil {
		t.Fatal(err)
	}
	if len(fp.Geometries) != 1 {
		t.Fatalf("expecting 1 geometry, found %d", len(fp.Geometries))
	}
	if _, ok := fp.Geometries[0].(geom.Polygon); !ok {
		t.Errorf("expecting a polygon, found %T", fp.Geometries[0])
	}
	if fp.CRS != "urn:ogc:def:crs:EPSG::4326" {
		t.Errorf("unexpected CRS %s", fp.CRS)
	}

	wkt, err := fp.WKT()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(wkt, "POLYGON") {
		t.Errorf("expecting a POLYGON, found %s", wkt)
	}

	lat, lon, err := fp.Center()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat-49.5) > 1e-9 || math.Abs(lon+119.5) > 1e-9 {
		t.Errorf("expecting (49.5, -119.5), found (%f, %f)", lat, lon)
	}
}

func TestDefaultCRS(t *testing.T) {
	fp, err := Read(strings.NewReader(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]]]]}`))
	if err != nil {
		t.Fatal(err)
	}
	if fp.CRS != DefaultCRS {
		t.Errorf("expecting default CRS, found %s", fp.CRS)
	}
	if len(fp.Union()) != 2 {
		t.Errorf("expecting 2 polygons, found %d", len(fp.Union()))
	}
	wkt, err := fp.WKT()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(wkt, "MULTIPOLYGON") {
		t.Errorf("expecting a MULTIPOLYGON, found %s", wkt)
	}
}

func TestWKTDissolve(t *testing.T) {
	fp, err := Read(strings.NewReader(`{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-120,49],[-119,49],[-119,50],[-120,50],[-120,49]]]}},
{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-119,49],[-118,49],[-118,50],[-119,50],[-119,49]]]}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(fp.Union()) != 2 {
		t.Errorf("expecting 2 polygons, found %d", len(fp.Union()))
	}
	wkt, err := fp.WKT()
	if err != nil {
		t.Fatal(err)
	}
	dissolved, err := geos.FromWKT(wkt)
	if err != nil {
		t.Fatal(err)
	}
	expected, _ := geos.FromWKT("POLYGON ((-120 49, -118 49, -118 50, -120 50, -120 49))")
	if equal, err := dissolved.Equals(expected); err != nil || !equal {
		t.Errorf("expecting the two polygons to be merged, found %s", wkt)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.geojson")); !errors.Is(err, service.ErrFileNotFound) {
		t.Errorf("expecting ErrFileNotFound, got %v", err)
	}
	if _, err := Load(writeFile(t, `{"type": "FeatureCollection", "features": [`)); !errors.Is(err, service.ErrFormat) {
		t.Errorf("expecting ErrFormat, got %v", err)
	}
	if _, err := Load(writeFile(t, `{"type": "FeatureCollection", "features": []}`)); !errors.Is(err, service.ErrFormat) {
		t.Errorf("expecting ErrFormat, got %v", err)
	}

	fp, err := Read(strings.NewReader(`{"type":"Point","coordinates":[-119.5,49.4]}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fp.WKT(); !errors.Is(err, service.ErrFormat) {
		t.Errorf("expecting ErrFormat for a footprint without polygon, got %v", err)
	}
}
