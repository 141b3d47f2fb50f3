package catalog

import (
	"context"
	"fmt"
	"runtime"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	icatalog "github.com/airbusgeo/aoifetch/interface/catalog"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/geometry"
	"github.com/airbusgeo/aoifetch/service/log"
)

// Catalog is the main class of this package
type Catalog struct {
	Provider icatalog.ProductsProvider
	loggedIn bool
}

// New creates a catalog searching the provider
func New(provider icatalog.ProductsProvider) *Catalog {
	return &Catalog{Provider: provider}
}

// Login opens a session on the provider (once)
func (c *Catalog) Login(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	if err := c.Provider.Login(ctx); err != nil {
		if service.Kind(err) == nil {
			err = service.Wrap(service.ErrAuth, err)
		}
		return fmt.Errorf("Login.%w", err)
	}
	c.loggedIn = true
	log.Logger(ctx).Sugar().Debugf("logged in to %s", c.Provider.Name())
	return nil
}

// Search lists the products intersecting the AOI of the query, acquired during the interval of time,
// with the given platform, processing level and a cloud cover inside the range.
func (c *Catalog) Search(ctx context.Context, q entities.Query) (entities.Products, error) {
	if err := q.Validate(); err != nil {
		return entities.Products{}, fmt.Errorf("Search.%w", err)
	}
	if err := c.Login(ctx); err != nil {
		return entities.Products{}, fmt.Errorf("Search.%w", err)
	}

	// geos AOI
	aoi, aoiWKT, err := geometry.SearchArea(q.AOI)
	if err != nil {
		return entities.Products{}, service.Wrap(service.ErrQuery, fmt.Errorf("Search.%w", err))
	}
	q.AOI = aoiWKT

	log.Logger(ctx).Sugar().Debugf("Search %s %s products from %s to %s on %s", q.Platform, q.ProcessingLevel, q.Start.Format("2006-01-02"), q.End.Format("2006-01-02"), c.Provider.Name())
	products, err := c.Provider.SearchProducts(ctx, q)
	if err != nil {
		return entities.Products{}, fmt.Errorf("Search.%w", err)
	}
	found := products.Len()

	if products, err = refineInventory(q, products, aoi); err != nil {
		return entities.Products{}, fmt.Errorf("Search.%w", err)
	}
	runtime.KeepAlive(aoi)

	log.Logger(ctx).Sugar().Infof("%d products found (%d before refinement)", products.Len(), found)
	return products, nil
}

// Product returns the metadata of a product given its id or its name
func (c *Catalog) Product(ctx context.Context, idOrName string) (entities.Product, error) {
	if err := c.Login(ctx); err != nil {
		return entities.Product{}, fmt.Errorf("Product.%w", err)
	}
	p, err := c.Provider.Product(ctx, idOrName)
	if err != nil {
		return entities.Product{}, fmt.Errorf("Product.%w", err)
	}
	return p, nil
}
