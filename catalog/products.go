package catalog

import (
	"fmt"
	"runtime"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/paulsmith/gogeos/geos"
)

func refineInventory(q entities.Query, products entities.Products, aoi *geos.Geometry) (entities.Products, error) {
	var err error
	products = removeDoubleEntries(products)
	if products, err = removeOutsideAOI(products, aoi); err != nil {
		return entities.Products{}, fmt.Errorf("refineInventory.%w", err)
	}
	if q.CloudCover != nil {
		products = products.Filter(func(p entities.Product) bool { return q.CloudCover.Contains(p.CloudCover) })
	}
	return products, nil
}

// removeDoubleEntries removes the products listed twice in the inventory (same identifier,
// e.g. returned by two pages of results). The latest ingested is kept.
// Re-processed products have their own identifier and are all kept.
func removeDoubleEntries(products entities.Products) entities.Products {
	all := products.All()
	identifiers := map[string]int{}

	j := 0
	for _, p := range all {
		key := p.Name()
		if k, ok := identifiers[key]; !ok {
			all[j] = p
			identifiers[key] = j
			j++
		} else if all[k].IngestionDate.Before(p.IngestionDate) {
			all[k] = p
		}
	}
	return entities.NewProducts(all[0:j]...)
}

// removeOutsideAOI removes products that are located outside the AOI
// The archive may work over a simplified representation of the AOI.
// Products without footprint are kept.
func removeOutsideAOI(products entities.Products, aoi *geos.Geometry) (entities.Products, error) {
	// Prepare geometry for intersection
	paoi := aoi.Prepare()

	res := entities.Products{}
	for _, p := range products.All() {
		if p.FootprintWKT == "" {
			res.Add(p)
			continue
		}
		footprint, err := geos.FromWKT(p.FootprintWKT)
		if err != nil {
			return entities.Products{}, service.Wrap(service.ErrFormat, fmt.Errorf("removeOutsideAOI.FromWKT[%s]: %w", p.ID, err))
		}
		intersect, err := paoi.Intersects(footprint)
		if err != nil {
			return entities.Products{}, fmt.Errorf("removeOutsideAOI.Intersects: %w", err)
		}
		if intersect {
			res.Add(p)
		}
	}
	runtime.KeepAlive(aoi)

	return res, nil
}
