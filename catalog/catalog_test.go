package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/service"
)

type fakeProvider struct {
	loginErr error
	products []entities.Product
	queries  []entities.Query
	logins   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Login(ctx context.Context) error {
	f.logins++
	return f.loginErr
}

func (f *fakeProvider) SearchProducts(ctx context.Context, q entities.Query) (entities.Products, error) {
	f.queries = append(f.queries, q)
	return entities.NewProducts(f.products...), nil
}

func (f *fakeProvider) Product(ctx context.Context, idOrName string) (entities.Product, error) {
	for _, p := range f.products {
		if p.ID == idOrName || p.Name() == idOrName {
			return p, nil
		}
	}
	return entities.Product{}, service.ErrProductNotFound{Product: idOrName}
}

const (
	inside  = "POLYGON ((-119.5 49.5,-118 49.5,-118 51,-119.5 51,-119.5 49.5))"
	outside = "POLYGON ((10 10,11 10,11 11,10 11,10 10))"
)

func query() entities.Query {
	return entities.Query{
		AOI:             "MULTIPOLYGON (((-120 49,-119 49,-119 50,-120 50,-120 49)),((-119 49,-118 49,-118 50,-119 50,-119 49)))",
		Start:           time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC),
		Platform:        "Sentinel-2",
		ProcessingLevel: "Level-2A",
		CloudCover:      &entities.Range{Min: 0, Max: 5},
	}
}

func TestSearch(t *testing.T) {
	provider := &fakeProvider{products: []entities.Product{
		{ID: "1", Identifier: "S2B_MSIL2A_20200502T185919_N0214_R013_T10UGV_20200502T210727", Platform: entities.Sentinel2, CloudCover: 3, FootprintWKT: inside},
		{ID: "2", Identifier: "S2A_MSIL2A_20200507T185921_N0214_R013_T10UGV_20200507T224153", Platform: entities.Sentinel2, CloudCover: 0, FootprintWKT: outside},
		{ID: "3", Identifier: "S2A_MSIL2A_20200512T185919_N0214_R013_T10UGV_20200512T210727", Platform: entities.Sentinel2, CloudCover: 50, FootprintWKT: inside},
		{ID: "4", Identifier: "S2A_MSIL2A_20200517T185921_N0214_R013_T10UGV_20200517T224153", Platform: entities.Sentinel2, CloudCover: 5},
	}}
	c := New(provider)
	products, err := c.Search(context.Background(), query())
	if err != nil {
		t.Fatal(err)
	}
	if ids := products.IDs(); len(ids) != 2 || ids[0] != "1" || ids[1] != "4" {
		t.Errorf("expecting products [1 4], got %v", ids)
	}
	for _, p := range products.All() {
		if p.CloudCover < 0 || p.CloudCover > 5 {
			t.Errorf("product %s: cloud cover %f outside [0, 5]", p.ID, p.CloudCover)
		}
	}
	if len(provider.queries) != 1 {
		t.Fatalf("expecting one query, got %d", len(provider.queries))
	}
	if aoi := provider.queries[0].AOI; aoi[:7] != "POLYGON" {
		t.Errorf("expecting the touching polygons to be merged, got %s", aoi)
	}

	// The session is opened once
	if _, err := c.Search(context.Background(), query()); err != nil {
		t.Fatal(err)
	}
	if provider.logins != 1 {
		t.Errorf("expecting 1 login, got %d", provider.logins)
	}
}

func TestSearchErrors(t *testing.T) {
	provider := &fakeProvider{loginErr: errors.New("401 Unauthorized")}
	c := New(provider)
	if _, err := c.Search(context.Background(), query()); !errors.Is(err, service.ErrAuth) {
		t.Errorf("expecting ErrAuth, got %v", err)
	}

	provider = &fakeProvider{}
	c = New(provider)
	q := query()
	q.CloudCover = &entities.Range{Min: 10, Max: 5}
	if _, err := c.Search(context.Background(), q); !errors.Is(err, service.ErrQuery) {
		t.Errorf("expecting ErrQuery, got %v", err)
	}
	q = query()
	q.AOI = "POLYGON ((-120 49"
	if _, err := c.Search(context.Background(), q); !errors.Is(err, service.ErrQuery) {
		t.Errorf("expecting ErrQuery, got %v", err)
	}
	if len(provider.queries) != 0 {
		t.Error("invalid queries must not be sent")
	}
}

func TestProduct(t *testing.T) {
	c := New(&fakeProvider{products: []entities.Product{{ID: "1", Identifier: "S2B_MSIL2A.SAFE"}}})
	if p, err := c.Product(context.Background(), "S2B_MSIL2A"); err != nil || p.ID != "1" {
		t.Errorf("expecting product 1, got %v (%v)", p, err)
	}
	if _, err := c.Product(context.Background(), "2"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expecting ErrNotFound, got %v", err)
	}
}

func TestRemoveDoubleEntries(t *testing.T) {
	products := entities.NewProducts(
		entities.Product{ID: "a", Identifier: "S1A_IW_SLC__1SDV_20200415T054835_20200415T054902_032134_03B6F4_041D", Platform: entities.Sentinel1, IngestionDate: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)},
		entities.Product{ID: "b", Identifier: "S1A_IW_SLC__1SDV_20200415T054835_20200415T054902_032134_03B6F4_041D.SAFE", Platform: entities.Sentinel1, IngestionDate: time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)},
		entities.Product{ID: "c", Identifier: "S1A_IW_SLC__1SDV_20200415T054835_20200415T054902_032134_03B6F4_1242", Platform: entities.Sentinel1, IngestionDate: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)},
		entities.Product{ID: "d", Identifier: "S2B_MSIL2A_20200502T185919_N0214_R013_T10UGV_20200502T210727", Platform: entities.Sentinel2, IngestionDate: time.Date(2020, 5, 3, 0, 0, 0, 0, time.UTC)},
		entities.Product{ID: "e", Identifier: "S2B_MSIL2A_20200502T185919_N0500_R013_T10UGV_20230401T120000", Platform: entities.Sentinel2, IngestionDate: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)},
	)

	newproducts := removeDoubleEntries(products)
	// a and b are the same product, re-processed products (c, e) are kept
	if ids := newproducts.IDs(); strings.Join(ids, ",") != "b,c,d,e" {
		t.Errorf("expecting [b c d e], found %v", ids)
	}
}
