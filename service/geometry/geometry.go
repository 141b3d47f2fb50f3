package geometry

import (
	"fmt"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// Generates a geos.Geometry from a geom.Geometry
func GeomToGeos(g geom.Geometry) (*geos.Geometry, error) {
	wkt, err := geomwkt.EncodeString(g)
	if err != nil {
		return nil, fmt.Errorf("GeomToGeos.EncodeString: %w", err)
	}
	geometry, err := geos.FromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("GeomToGeos.FromWKT: %w", err)
	}
	return geometry, nil
}

// DissolveTolerance is the simplification tolerance (degrees) applied when polygons are merged
const DissolveTolerance = 0.000001

// Union merges the polygons and simplifies the result.
// If GEOS fails to merge them all at once, they are simplified and merged one by one.
func Union(geoms []*geos.Geometry, tolerance float64) (*geos.Geometry, error) {
	if len(geoms) == 0 {
		return nil, fmt.Errorf("Union: empty list of geometries")
	}
	aoi, err := UnaryUnion(geoms)
	if err == nil {
		if aoi, err = aoi.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		return aoi, nil
	}
	// Union all failed, retry one by one with simplify
	aoi = nil
	for _, geom := range geoms {
		if geom, err = geom.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		if aoi == nil {
			aoi = geom
		} else if aoi, err = geom.Union(aoi); err != nil {
			return nil, fmt.Errorf("Union: %w", err)
		}
	}
	if aoi == nil {
		return nil, fmt.Errorf("Union: empty list of geometries")
	}
	return aoi, nil
}

// UnaryUnion merges the polygons in a single operation
func UnaryUnion(geoms []*geos.Geometry) (*geos.Geometry, error) {
	aoi, err := geos.NewCollection(geos.MULTIPOLYGON, geoms...)
	if err != nil {
		return nil, fmt.Errorf("UnaryUnion.NewCollection: %w", err)
	}
	if aoi, err = aoi.UnaryUnion(); err != nil {
		return nil, fmt.Errorf("UnaryUnion.UnaryUnion: %w", err)
	}
	return aoi, nil
}

// SearchArea dissolves the AOI into the geometry sent to a catalogue as spatial filter
// The touching polygons of a multipolygon are merged, the disjoint ones are kept.
func SearchArea(aoiWKT string) (*geos.Geometry, string, error) {
	aoi, err := geos.FromWKT(aoiWKT)
	if err != nil {
		return nil, "", fmt.Errorf("SearchArea.FromWKT: %w", err)
	}
	if aoi, err = aoi.UnaryUnion(); err != nil {
		return nil, "", fmt.Errorf("SearchArea.UnaryUnion: %w", err)
	}
	wkt, err := aoi.ToWKT()
	if err != nil {
		return nil, "", fmt.Errorf("SearchArea.ToWKT: %w", err)
	}
	return aoi, wkt, nil
}

// Centroid returns the (lon, lat) centroid of the geometry
func Centroid(g geom.Geometry) ([2]float64, error) {
	geo, err := GeomToGeos(g)
	if err != nil {
		return [2]float64{}, fmt.Errorf("Centroid.%w", err)
	}
	c, err := geo.Centroid()
	if err != nil {
		return [2]float64{}, fmt.Errorf("Centroid: %w", err)
	}
	x, err := c.X()
	if err != nil {
		return [2]float64{}, fmt.Errorf("Centroid.X: %w", err)
	}
	y, err := c.Y()
	if err != nil {
		return [2]float64{}, fmt.Errorf("Centroid.Y: %w", err)
	}
	return [2]float64{x, y}, nil
}
