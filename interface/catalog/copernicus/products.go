package copernicus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/google/uuid"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/interface/shared"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/log"
)

const (
	CopernicusPageLimit = 1000
	CopernicusURL       = "https://catalogue.dataspace.copernicus.eu"
)

// Provider implements catalog.ProductsProvider for the Copernicus Data Space Ecosystem (OData API)
type Provider struct {
	BaseURL string
	Limit   int // Page size
	Client  *http.Client
	Session *shared.Session
}

// NewProvider creates a provider. baseURL defaults to CopernicusURL.
func NewProvider(baseURL string, session *shared.Session, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = CopernicusURL
	}
	return &Provider{BaseURL: strings.TrimSuffix(baseURL, "/"), Limit: CopernicusPageLimit, Client: client, Session: session}
}

func (p *Provider) Name() string {
	return "Copernicus"
}

// Login implements catalog.ProductsProvider
func (p *Provider) Login(ctx context.Context) error {
	if err := p.Session.Login(ctx); err != nil {
		return fmt.Errorf("Copernicus.%w", err)
	}
	return nil
}

var productTypes = map[string]map[string]string{
	entities.Sentinel2: {
		"Level-1C": "S2MSI1C",
		"Level-2A": "S2MSI2A",
	},
}

const (
	stringAttribute = "Attributes/OData.CSC.StringAttribute/any(att:att/Name eq '%s' and att/OData.CSC.StringAttribute/Value eq '%s')"
	doubleAttribute = "Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq '%s' and att/OData.CSC.DoubleAttribute/Value %s %v)"
	dateFormat      = "2006-01-02T15:04:05.000Z"
)

// Filter returns the OData $filter corresponding to the query
func Filter(q entities.Query) string {
	parameters := []string{
		fmt.Sprintf("Collection/Name eq '%s'", strings.ToUpper(q.Platform)),
		"OData.CSC.Intersects(area=geography'SRID=4326;" + q.AOI + "')",
		fmt.Sprintf("ContentDate/Start ge %s", q.Start.UTC().Format(dateFormat)),
		fmt.Sprintf("ContentDate/Start le %s", q.End.UTC().Format(dateFormat)),
	}
	if q.ProcessingLevel != "" {
		if productType, ok := productTypes[q.Platform][q.ProcessingLevel]; ok {
			parameters = append(parameters, fmt.Sprintf(stringAttribute, "productType", productType))
		} else {
			parameters = append(parameters, fmt.Sprintf(stringAttribute, "processingLevel", q.ProcessingLevel))
		}
	}
	if q.CloudCover != nil {
		parameters = append(parameters,
			fmt.Sprintf(doubleAttribute, "cloudCover", "ge", q.CloudCover.Min),
			fmt.Sprintf(doubleAttribute, "cloudCover", "le", q.CloudCover.Max))
	}
	return strings.Join(parameters, " and ")
}

// SearchProducts implements catalog.ProductsProvider
func (p *Provider) SearchProducts(ctx context.Context, q entities.Query) (entities.Products, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = CopernicusPageLimit
	}
	url := p.BaseURL + "/odata/v1/Products?$filter=" + neturl.QueryEscape(Filter(q)) +
		fmt.Sprintf("&$orderby=ContentDate/Start&$top=%d&$skip=0&$expand=Attributes", limit)

	hits, err := p.query(ctx, url)
	if err != nil {
		return entities.Products{}, fmt.Errorf("Copernicus.SearchProducts.%w", err)
	}
	products := entities.Products{}
	for _, hit := range hits {
		product, err := hit.product(q.Platform)
		if err != nil {
			return entities.Products{}, fmt.Errorf("Copernicus.SearchProducts.%w", err)
		}
		products.Add(product)
	}
	return products, nil
}

// Product implements catalog.ProductsProvider
func (p *Provider) Product(ctx context.Context, idOrName string) (entities.Product, error) {
	var url string
	if id, err := uuid.Parse(idOrName); err == nil {
		url = p.BaseURL + fmt.Sprintf("/odata/v1/Products(%s)?$expand=Attributes", id.String())
		body, err := service.HTTPGetWithAuth(ctx, p.Client, url, "", "", "")
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return entities.Product{}, service.ErrProductNotFound{Product: idOrName}
			}
			return entities.Product{}, fmt.Errorf("Copernicus.Product.%w", err)
		}
		var h hit
		if err := json.Unmarshal(body, &h); err != nil {
			return entities.Product{}, service.Wrap(service.ErrFormat, fmt.Errorf("Copernicus.Product.Unmarshal: %w", err))
		}
		return h.product("")
	}

	name := strings.TrimSuffix(idOrName, ".SAFE")
	url = p.BaseURL + "/odata/v1/Products?$filter=" + neturl.QueryEscape(fmt.Sprintf("startswith(Name,'%s')", name)) + "&$top=1&$skip=0&$expand=Attributes"
	hits, err := p.query(ctx, url)
	if err != nil {
		return entities.Product{}, fmt.Errorf("Copernicus.Product.%w", err)
	}
	if len(hits) == 0 {
		return entities.Product{}, service.ErrProductNotFound{Product: idOrName}
	}
	return hits[0].product("")
}

type hit struct {
	ID              string            `json:"Id"`
	Name            string            `json:"Name"`
	ContentLength   int64             `json:"ContentLength"`
	PublicationDate string            `json:"PublicationDate"`
	Footprint       *geojson.Geometry `json:"GeoFootprint"`
	ContentDate     struct {
		Start string `json:"Start"`
	} `json:"ContentDate"`
	Attributes []struct {
		Name  string      `json:"Name"`
		Value interface{} `json:"Value"`
	} `json:"Attributes"`
}

func (h hit) attributes() map[string]string {
	attrs := map[string]string{}
	for _, elem := range h.Attributes {
		attrs[elem.Name] = fmt.Sprintf("%v", elem.Value)
	}
	return attrs
}

func (h hit) product(platform string) (entities.Product, error) {
	attrs := h.attributes()
	date, err := time.Parse(time.RFC3339Nano, h.ContentDate.Start)
	if err != nil {
		return entities.Product{}, service.Wrap(service.ErrFormat, fmt.Errorf("product[%s].TimeParse: %w", h.Name, err))
	}
	product := entities.Product{
		ID:              h.ID,
		Identifier:      h.Name,
		Platform:        platform,
		ProcessingLevel: attrs["processingLevel"],
		ProductType:     attrs["productType"],
		Date:            date,
		Size:            h.ContentLength,
	}
	if product.Platform == "" {
		product.Platform = entities.GetPlatform(attrs["platformShortName"])
	}
	if ingestionDate, err := time.Parse(time.RFC3339Nano, h.PublicationDate); err == nil {
		product.IngestionDate = ingestionDate
	}
	if cc, ok := attrs["cloudCover"]; ok {
		if product.CloudCover, err = strconv.ParseFloat(cc, 64); err != nil {
			return entities.Product{}, service.Wrap(service.ErrFormat, fmt.Errorf("product[%s].cloudCover: %w", h.Name, err))
		}
	}
	if h.Footprint != nil && h.Footprint.Geometry != nil {
		if product.FootprintWKT, err = wkt.EncodeString(h.Footprint.Geometry); err != nil {
			return entities.Product{}, service.Wrap(service.ErrFormat, fmt.Errorf("product[%s].wkt.Encode: %w", h.Name, err))
		}
	}
	return product, nil
}

// query follows the @odata.nextLink until the last page
func (p *Provider) query(ctx context.Context, url string) ([]hit, error) {
	var hits []hit
	for page := 1; url != ""; page++ {
		log.Logger(ctx).Sugar().Debugf("[Copernicus] Search page %d", page)
		jsonResults, err := service.HTTPGetWithAuth(ctx, p.Client, url, "", "", "")
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}

		results := struct {
			Next string `json:"@odata.nextLink"`
			Hits []hit  `json:"value"`
		}{}
		if err := json.Unmarshal(jsonResults, &results); err != nil {
			return nil, service.Wrap(service.ErrFormat, fmt.Errorf("query.Unmarshal : %w (response: %.512s)", err, jsonResults))
		}
		hits = append(hits, results.Hits...)
		url = results.Next
	}
	return hits, nil
}
