package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/airbusgeo/aoifetch/catalog/entities"
)

const dhusDownloadProduct = "%s/odata/v1/Products('%s')/$value"

// DHuSImageProvider implements ImageProvider for a Data Hub Software archive
type DHuSImageProvider struct {
	baseURL string
	user    string
	pword   string
	client  *http.Client
}

// NewDHuSImageProvider creates a new ImageProvider from a DHuS archive (e.g. https://scihub.copernicus.eu/dhus)
func NewDHuSImageProvider(baseURL, user, pword string, client *http.Client) *DHuSImageProvider {
	return &DHuSImageProvider{baseURL: strings.TrimSuffix(baseURL, "/"), user: user, pword: pword, client: client}
}

// Name implements ImageProvider
func (ip *DHuSImageProvider) Name() string {
	return "DHuS"
}

// Download implements ImageProvider
func (ip *DHuSImageProvider) Download(ctx context.Context, product entities.Product, localDir string) (string, error) {
	url := fmt.Sprintf(dhusDownloadProduct, ip.baseURL, product.ID)
	file, err := downloadZipWithAuth(ctx, ip.client, url, localDir, product, ip.Name(), auth{user: ip.user, pword: ip.pword}, false)
	if err != nil {
		return "", fmt.Errorf("DHuSImageProvider.%w", err)
	}
	return file, nil
}
