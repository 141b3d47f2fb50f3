package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
)

const (
	Sentinel1         = "Sentinel-1"
	Sentinel2         = "Sentinel-2"
	Sentinel3         = "Sentinel-3"
	Sentinel5P        = "Sentinel-5P"
	UndefinedPlatform = ""
)

// GetPlatform returns the normalized platform name from the user input
// (Sentinel-2, sentinel2, S2, SENTINEL-2...) or UndefinedPlatform
func GetPlatform(platform string) string {
	p := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(platform))
	p = strings.TrimPrefix(p, "sentinel")
	p = strings.TrimPrefix(p, "s")
	switch p {
	case "1":
		return Sentinel1
	case "2":
		return Sentinel2
	case "3":
		return Sentinel3
	case "5p":
		return Sentinel5P
	}
	return UndefinedPlatform
}

// GetProcessingLevel returns the normalized processing level (Level-1C, Level-2A...) from the user input (L2A, level2a...)
func GetProcessingLevel(level string) string {
	l := strings.ToUpper(strings.TrimSpace(level))
	if l == "" {
		return ""
	}
	l = strings.TrimPrefix(l, "LEVEL")
	l = strings.TrimPrefix(l, "-")
	l = strings.TrimPrefix(l, "L")
	return "Level-" + l
}

// Range is a closed interval [Min, Max]
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains returns true if Min <= v <= Max
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// Query is the input of a catalogue search
type Query struct {
	AOI             string // WKT, in geographic coordinates
	Start, End      time.Time
	Platform        string
	ProcessingLevel string
	CloudCover      *Range // nil: no filter on cloud cover
}

// Validate checks the consistency of the query and normalizes the platform and the processing level
func (q *Query) Validate() error {
	if strings.TrimSpace(q.AOI) == "" {
		return service.Wrapf(service.ErrQuery, "Query.Validate: empty area of interest")
	}
	if q.End.Before(q.Start) {
		return service.Wrapf(service.ErrQuery, "Query.Validate: end date (%s) is before start date (%s)", q.End.Format("20060102"), q.Start.Format("20060102"))
	}
	platform := GetPlatform(q.Platform)
	if platform == UndefinedPlatform {
		return service.Wrapf(service.ErrQuery, "Query.Validate: unknown platform: '%s'", q.Platform)
	}
	q.Platform = platform
	q.ProcessingLevel = GetProcessingLevel(q.ProcessingLevel)
	if r := q.CloudCover; r != nil {
		if r.Min < 0 || r.Max > 100 || r.Min > r.Max {
			return service.Wrapf(service.ErrQuery, "Query.Validate: cloud cover range must be included in [0, 100] (got [%v, %v])", r.Min, r.Max)
		}
	}
	return nil
}

var dateRegexp = regexp.MustCompile(`^\d{8}$`)

// ParseDateRange parses two dates formatted as YYYYMMDD.
// The range is [start 00:00:00, end 00:00:00] UTC.
func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	var dates [2]time.Time
	for i, s := range []string{start, end} {
		if !dateRegexp.MatchString(s) {
			return time.Time{}, time.Time{}, service.Wrapf(service.ErrQuery, "ParseDateRange: '%s' is not formatted as YYYYMMDD", s)
		}
		d, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, service.Wrap(service.ErrQuery, fmt.Errorf("ParseDateRange[%s]: %w", s, err))
		}
		dates[i] = d
	}
	if dates[1].Before(dates[0]) {
		return time.Time{}, time.Time{}, service.Wrapf(service.ErrQuery, "ParseDateRange: end date %s is before start date %s", end, start)
	}
	return dates[0], dates[1], nil
}

// Product is a catalogue record
type Product struct {
	ID              string    `json:"id"`
	Identifier      string    `json:"identifier"`
	Platform        string    `json:"platform"`
	ProcessingLevel string    `json:"processing_level"`
	ProductType     string    `json:"product_type"`
	Date            time.Time `json:"date"`
	IngestionDate   time.Time `json:"ingestion_date"`
	CloudCover      float64   `json:"cloud_cover"`
	FootprintWKT    string    `json:"-"`
	Size            int64     `json:"size"`
}

// Name returns the identifier without the .SAFE extension
func (p Product) Name() string {
	return strings.TrimSuffix(p.Identifier, ".SAFE")
}

// Products is an ordered set of products, keyed by ID
type Products struct {
	list  []Product
	index map[string]int
}

// NewProducts creates a set of products. Duplicates are ignored.
func NewProducts(products ...Product) Products {
	ps := Products{}
	for _, p := range products {
		ps.Add(p)
	}
	return ps
}

// Add appends the product if its ID is not already in the set. Returns false otherwise.
func (ps *Products) Add(p Product) bool {
	if ps.index == nil {
		ps.index = map[string]int{}
	}
	if _, ok := ps.index[p.ID]; ok {
		return false
	}
	ps.index[p.ID] = len(ps.list)
	ps.list = append(ps.list, p)
	return true
}

// IDs returns the ids in insertion order
func (ps Products) IDs() []string {
	ids := make([]string, len(ps.list))
	for i, p := range ps.list {
		ids[i] = p.ID
	}
	return ids
}

func (ps Products) Get(id string) (Product, bool) {
	i, ok := ps.index[id]
	if !ok {
		return Product{}, false
	}
	return ps.list[i], true
}

func (ps Products) Len() int {
	return len(ps.list)
}

// All returns a copy of the products in insertion order
func (ps Products) All() []Product {
	return append([]Product(nil), ps.list...)
}

// Filter returns the products for which keep returns true
func (ps Products) Filter(keep func(Product) bool) Products {
	res := Products{}
	for _, p := range ps.list {
		if keep(p) {
			res.Add(p)
		}
	}
	return res
}

type productFeature struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Product           `json:"properties"`
}

// MarshalJSON implements json.Marshaler, as a GeoJSON FeatureCollection
func (ps Products) MarshalJSON() ([]byte, error) {
	fc := struct {
		Type     string           `json:"type"`
		Features []productFeature `json:"features"`
	}{Type: "FeatureCollection", Features: []productFeature{}}

	for _, p := range ps.list {
		f := productFeature{Type: "Feature", ID: p.ID, Properties: p}
		if p.FootprintWKT != "" {
			g, err := wkt.DecodeString(p.FootprintWKT)
			if err != nil {
				return nil, fmt.Errorf("MarshalJSON[%s].wkt.DecodeString: %w", p.ID, err)
			}
			f.Geometry = &geojson.Geometry{Geometry: g}
		}
		fc.Features = append(fc.Features, f)
	}
	return json.Marshal(fc)
}

// WriteGeoJSON writes the products as a GeoJSON FeatureCollection, overwriting the file
func (ps Products) WriteGeoJSON(path string) error {
	b, err := json.Marshal(ps)
	if err != nil {
		return service.Wrap(service.ErrFormat, fmt.Errorf("WriteGeoJSON.%w", err))
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return service.Wrap(service.ErrStorage, fmt.Errorf("WriteGeoJSON: %w", err))
	}
	return nil
}
