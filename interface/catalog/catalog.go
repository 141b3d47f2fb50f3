package catalog

import (
	"context"

	"github.com/airbusgeo/aoifetch/catalog/entities"
)

// ProductsProvider is the interface of an imagery archive catalogue
type ProductsProvider interface {
	// Login opens a session. A rejection of the credentials is a service.ErrAuth.
	Login(ctx context.Context) error
	// SearchProducts returns the products matching the query. The query must be validated.
	SearchProducts(ctx context.Context, q entities.Query) (entities.Products, error)
	// Product returns the metadata of a product given its id or its name
	// or a service.ErrProductNotFound.
	Product(ctx context.Context, idOrName string) (entities.Product, error)
	// Name of the provider
	Name() string
}
