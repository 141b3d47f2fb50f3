package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/interface/shared"
)

const CopernicusDownloadURL = "https://zipper.dataspace.copernicus.eu"

const copernicusDownloadProduct = "%s/odata/v1/Products(%s)/$value"

// CopernicusImageProvider implements ImageProvider for Copernicus Data Space
type CopernicusImageProvider struct {
	baseURL string
	session *shared.Session
	client  *http.Client
}

// Name implements ImageProvider
func (ip *CopernicusImageProvider) Name() string {
	return "Copernicus"
}

// NewCopernicusImageProvider creates a new ImageProvider from Copernicus.
// The access token is provided by the session. baseURL defaults to CopernicusDownloadURL.
func NewCopernicusImageProvider(baseURL string, session *shared.Session, client *http.Client) *CopernicusImageProvider {
	if baseURL == "" {
		baseURL = CopernicusDownloadURL
	}
	return &CopernicusImageProvider{baseURL: strings.TrimSuffix(baseURL, "/"), session: session, client: client}
}

// Download implements ImageProvider
func (ip *CopernicusImageProvider) Download(ctx context.Context, product entities.Product, localDir string) (string, error) {
	token, err := ip.session.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("CopernicusImageProvider.Download.%w", err)
	}

	url := fmt.Sprintf(copernicusDownloadProduct, ip.baseURL, product.ID)
	file, err := downloadZipWithAuth(ctx, ip.client, url, localDir, product, ip.Name(), auth{token: token}, true)
	if err != nil {
		return "", fmt.Errorf("CopernicusImageProvider.%w", err)
	}
	return file, nil
}
