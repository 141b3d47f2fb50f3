// Package footprint reads the area of interest from a GeoJSON file
package footprint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/geometry"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/paulsmith/gogeos/geos"
)

// DefaultCRS is the CRS of a GeoJSON without "crs" member (RFC 7946)
const DefaultCRS = "urn:ogc:def:crs:OGC:1.3:CRS84"

// Footprint is the area of interest: a collection of geometries and their CRS.
// It is not modified after loading.
type Footprint struct {
	Geometries []geom.Geometry
	CRS        string
	Source     string
}

// Load reads a GeoJSON file (FeatureCollection, Feature or Geometry)
func Load(path string) (*Footprint, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, service.Wrap(service.ErrFileNotFound, fmt.Errorf("footprint.Load: %w", err))
		}
		return nil, service.Wrap(service.ErrStorage, fmt.Errorf("footprint.Load: %w", err))
	}
	defer f.Close()
	fp, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("footprint.Load[%s].%w", path, err)
	}
	fp.Source = path
	return fp, nil
}

// Read parses a GeoJSON document
func Read(r io.Reader) (*Footprint, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, service.Wrap(service.ErrStorage, fmt.Errorf("Read: %w", err))
	}
	geometries, err := unmarshalGeometries(data)
	if err != nil {
		return nil, service.Wrap(service.ErrFormat, fmt.Errorf("Read: %w", err))
	}
	if len(geometries) == 0 {
		return nil, service.Wrapf(service.ErrFormat, "Read: no geometry found")
	}
	crs, err := unmarshalCRS(data)
	if err != nil {
		return nil, service.Wrap(service.ErrFormat, fmt.Errorf("Read.CRS: %w", err))
	}
	return &Footprint{Geometries: geometries, CRS: crs}, nil
}

// unmarshalGeometries returns one geometry per feature
func unmarshalGeometries(data []byte) ([]geom.Geometry, error) {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	switch geo := g.Geometry.(type) {
	case geojson.FeatureCollection:
		var geoms []geom.Geometry
		for _, f := range geo.Features {
			if f.Geometry.Geometry != nil {
				geoms = append(geoms, f.Geometry.Geometry)
			}
		}
		return geoms, nil
	case geojson.Feature:
		if geo.Geometry.Geometry == nil {
			return nil, nil
		}
		return []geom.Geometry{geo.Geometry.Geometry}, nil
	case nil:
		return nil, nil
	default:
		return []geom.Geometry{g.Geometry}, nil
	}
}

func unmarshalCRS(data []byte) (string, error) {
	doc := struct {
		CRS *struct {
			Type       string `json:"type"`
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	if doc.CRS == nil || doc.CRS.Properties.Name == "" {
		return DefaultCRS, nil
	}
	return doc.CRS.Properties.Name, nil
}

// Union merges all the polygons of the footprint into a multipolygon.
// Other kinds of geometry are ignored.
func (f *Footprint) Union() geom.MultiPolygon {
	var mp geom.MultiPolygon
	for _, g := range f.Geometries {
		mergeMultiPolygons(g, &mp)
	}
	return mp
}

func mergeMultiPolygons(g geom.Geometry, mp *geom.MultiPolygon) {
	switch g := g.(type) {
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.Collection:
		for _, g := range g.Geometries() {
			mergeMultiPolygons(g, mp)
		}
	}
}

// WKT returns the well-known-text of the polygons of the footprint, dissolved:
// touching polygons are merged, disjoint ones make a multipolygon.
func (f *Footprint) WKT() (string, error) {
	mp := f.Union()
	if len(mp) == 0 {
		return "", service.Wrapf(service.ErrFormat, "footprint.WKT: no polygon in %s", f.Source)
	}
	polygons := make([]*geos.Geometry, 0, len(mp))
	for _, p := range mp {
		g, err := geometry.GeomToGeos(geom.Polygon(p))
		if err != nil {
			return "", service.Wrap(service.ErrFormat, fmt.Errorf("footprint.WKT.%w", err))
		}
		polygons = append(polygons, g)
	}
	aoi, err := geometry.Union(polygons, geometry.DissolveTolerance)
	if err != nil {
		return "", service.Wrap(service.ErrFormat, fmt.Errorf("footprint.WKT.%w", err))
	}
	s, err := aoi.ToWKT()
	if err != nil {
		return "", service.Wrap(service.ErrFormat, fmt.Errorf("footprint.WKT: %w", err))
	}
	return s, nil
}

// Center returns the (lat, lon) centroid of the polygons of the footprint
func (f *Footprint) Center() (float64, float64, error) {
	mp := f.Union()
	if len(mp) == 0 {
		return 0, 0, service.Wrapf(service.ErrFormat, "footprint.Center: no polygon in %s", f.Source)
	}
	c, err := geometry.Centroid(mp)
	if err != nil {
		return 0, 0, service.Wrap(service.ErrFormat, fmt.Errorf("footprint.%w", err))
	}
	return c[1], c[0], nil
}
