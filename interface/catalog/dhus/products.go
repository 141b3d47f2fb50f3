package dhus

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/log"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/google/uuid"
)

const (
	DHuSURL      = "https://scihub.copernicus.eu/dhus"
	DHuSPageSize = 100
)

// Provider implements catalog.ProductsProvider for a Data Hub Software archive (OpenSearch API)
type Provider struct {
	BaseURL  string
	Username string
	Password string
	Rows     int // Page size
	Client   *http.Client
}

// NewProvider creates a provider. baseURL defaults to DHuSURL.
func NewProvider(baseURL, username, password string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = DHuSURL
	}
	return &Provider{BaseURL: strings.TrimSuffix(baseURL, "/"), Username: username, Password: password, Rows: DHuSPageSize, Client: client}
}

func (p *Provider) Name() string {
	return "DHuS"
}

// Login implements catalog.ProductsProvider, checking the credentials with an empty search
func (p *Provider) Login(ctx context.Context) error {
	if p.Username == "" || p.Password == "" {
		return service.Wrapf(service.ErrAuth, "DHuS.Login: missing credentials")
	}
	if _, err := service.HTTPGetWithAuth(ctx, p.Client, p.BaseURL+"/search?q=*&rows=0", p.Username, p.Password, ""); err != nil {
		return fmt.Errorf("DHuS.Login.%w", err)
	}
	return nil
}

const dateFormat = "2006-01-02T15:04:05.000Z"

// SearchQuery returns the OpenSearch full-text query corresponding to the query
func SearchQuery(q entities.Query) string {
	parameters := []string{
		"footprint:\"Intersects(" + q.AOI + ")\"",
		fmt.Sprintf("beginPosition:[%s TO %s]", q.Start.UTC().Format(dateFormat), q.End.UTC().Format(dateFormat)),
		"platformname:" + q.Platform,
	}
	if q.ProcessingLevel != "" {
		parameters = append(parameters, "processinglevel:"+q.ProcessingLevel)
	}
	if q.CloudCover != nil {
		parameters = append(parameters, fmt.Sprintf("cloudcoverpercentage:[%v TO %v]", q.CloudCover.Min, q.CloudCover.Max))
	}
	return strings.Join(parameters, " AND ")
}

// SearchProducts implements catalog.ProductsProvider
func (p *Provider) SearchProducts(ctx context.Context, q entities.Query) (entities.Products, error) {
	rawproducts, err := p.query(ctx, SearchQuery(q))
	if err != nil {
		return entities.Products{}, fmt.Errorf("DHuS.SearchProducts.%w", err)
	}
	products := entities.Products{}
	for _, rawproduct := range rawproducts {
		product, err := parseProduct(rawproduct)
		if err != nil {
			return entities.Products{}, fmt.Errorf("DHuS.SearchProducts.%w", err)
		}
		products.Add(product)
	}
	return products, nil
}

// Product implements catalog.ProductsProvider
func (p *Provider) Product(ctx context.Context, idOrName string) (entities.Product, error) {
	q := "identifier:" + strings.TrimSuffix(idOrName, ".SAFE")
	if id, err := uuid.Parse(idOrName); err == nil {
		q = "uuid:" + id.String()
	}
	rawproducts, err := p.query(ctx, q)
	if err != nil {
		return entities.Product{}, fmt.Errorf("DHuS.Product.%w", err)
	}
	if len(rawproducts) == 0 {
		return entities.Product{}, service.ErrProductNotFound{Product: idOrName}
	}
	product, err := parseProduct(rawproducts[0])
	if err != nil {
		return entities.Product{}, fmt.Errorf("DHuS.Product.%w", err)
	}
	return product, nil
}

func parseProduct(rawproduct map[string]string) (entities.Product, error) {
	// Check for required elements
	for _, elem := range []string{"uuid", "identifier", "beginposition"} {
		if _, ok := rawproduct[elem]; !ok {
			return entities.Product{}, service.Wrapf(service.ErrFormat, "parseProduct: missing element %s in results", elem)
		}
	}

	date, err := time.Parse(time.RFC3339Nano, rawproduct["beginposition"])
	if err != nil {
		return entities.Product{}, service.Wrap(service.ErrFormat, fmt.Errorf("parseProduct.TimeParse: %w", err))
	}
	product := entities.Product{
		ID:              rawproduct["uuid"],
		Identifier:      rawproduct["identifier"],
		Platform:        entities.GetPlatform(rawproduct["platformname"]),
		ProcessingLevel: rawproduct["processinglevel"],
		ProductType:     rawproduct["producttype"],
		Date:            date,
		Size:            parseSize(rawproduct["size"]),
	}
	if ingestionDate, err := time.Parse(time.RFC3339Nano, rawproduct["ingestiondate"]); err == nil {
		product.IngestionDate = ingestionDate
	}
	if cc, ok := rawproduct["cloudcoverpercentage"]; ok {
		if product.CloudCover, err = strconv.ParseFloat(cc, 64); err != nil {
			return entities.Product{}, service.Wrap(service.ErrFormat, fmt.Errorf("parseProduct.cloudcoverpercentage: %w", err))
		}
	}
	if footprint, ok := rawproduct["footprint"]; ok {
		wktAOI := strings.ToUpper(footprint)
		if _, err := wkt.DecodeString(wktAOI); err != nil {
			return entities.Product{}, service.Wrap(service.ErrFormat, fmt.Errorf("parseProduct.wktDecodeString[%s]: %w", wktAOI, err))
		}
		product.FootprintWKT = wktAOI
	}
	return product, nil
}

// parseSize parses a size formatted as "1.09 GB". Returns 0 if the size cannot be parsed.
func parseSize(size string) int64 {
	fields := strings.Fields(size)
	if len(fields) != 2 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(fields[1]) {
	case "KB":
		v *= 1 << 10
	case "MB":
		v *= 1 << 20
	case "GB":
		v *= 1 << 30
	case "TB":
		v *= 1 << 40
	}
	return int64(v)
}

// XML Element structure:
type element struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type feed struct {
	XMLName xml.Name `xml:"feed"`
	Error   struct {
		Code    string `xml:"code"`
		Message string `xml:"message"`
	} `xml:"error"`
	Entries []struct {
		StrElements    []element `xml:"str"`
		IntElements    []element `xml:"int"`
		DateElements   []element `xml:"date"`
		DoubleElements []element `xml:"double"`
	} `xml:"entry"`
	Links []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
	TotalResults int `xml:"totalResults"`
}

func (p *Provider) query(ctx context.Context, query string) ([]map[string]string, error) {
	// Pagging
	var rawproducts []map[string]string
	rows := p.Rows
	if rows <= 0 {
		rows = DHuSPageSize
	}
	nextPage := true
	query = neturl.QueryEscape(query)
	totalPages := "?"
	for index := 0; nextPage; index += rows {
		log.Logger(ctx).Sugar().Debugf("[DHuS] Search page %d/%s", index/rows+1, totalPages)
		url := p.BaseURL + "/search?q=" + query + fmt.Sprintf("&rows=%d&start=%d", rows, index)
		xmlResults, err := service.HTTPGetWithAuth(ctx, p.Client, url, p.Username, p.Password, "")
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}

		results := feed{}
		if err := xml.Unmarshal(xmlResults, &results); err != nil {
			return nil, service.Wrap(service.ErrFormat, fmt.Errorf("query.Unmarshal : %w (response: %.512s)", err, xmlResults))
		}
		if results.Error.Code != "" {
			return nil, service.Wrap(service.ErrQuery, errors.New("query: "+results.Error.Message+"[code:"+results.Error.Code+"]"))
		}

		// Merge all elements of the product into a dict
		for _, entry := range results.Entries {
			rawproduct := map[string]string{}
			for _, elems := range [][]element{entry.StrElements, entry.IntElements, entry.DateElements, entry.DoubleElements} {
				for _, elem := range elems {
					rawproduct[elem.Name] = elem.Value
				}
			}
			rawproducts = append(rawproducts, rawproduct)
		}

		// Is there a next page ?
		nextPage = false
		for _, link := range results.Links {
			if strings.ToLower(link.Rel) == "next" && link.Href != "" {
				nextPage = len(results.Entries) > 0
			}
		}
		if results.TotalResults != 0 {
			totalPages = strconv.Itoa((results.TotalResults-1)/rows + 1)
		}
	}
	return rawproducts, nil
}
