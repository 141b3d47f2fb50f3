package workflow

import (
	"fmt"
	"net/http"

	"github.com/airbusgeo/aoifetch/config"
	icatalog "github.com/airbusgeo/aoifetch/interface/catalog"
	"github.com/airbusgeo/aoifetch/interface/catalog/copernicus"
	"github.com/airbusgeo/aoifetch/interface/catalog/dhus"
	"github.com/airbusgeo/aoifetch/interface/provider"
	"github.com/airbusgeo/aoifetch/interface/shared"
	"github.com/airbusgeo/aoifetch/service"
)

// NewArchive creates the catalogue and the image provider of the archive.
// client may be nil (http.DefaultClient)
func NewArchive(cfg config.ArchiveConfig, client *http.Client) (icatalog.ProductsProvider, provider.ImageProvider, error) {
	switch cfg.Kind {
	case config.ArchiveCopernicus:
		authURL := cfg.AuthURL
		if authURL == "" {
			authURL = shared.CopernicusTokenURL
		}
		session := shared.NewSession(authURL, shared.CopernicusClientID, cfg.Username, cfg.Password, client)
		return copernicus.NewProvider(cfg.URL, session, client), provider.NewCopernicusImageProvider(cfg.DownloadURL, session, client), nil

	case config.ArchiveDHuS:
		url := cfg.URL
		if url == "" {
			url = dhus.DHuSURL
		}
		downloadURL := cfg.DownloadURL
		if downloadURL == "" {
			downloadURL = url
		}
		return dhus.NewProvider(url, cfg.Username, cfg.Password, client), provider.NewDHuSImageProvider(downloadURL, cfg.Username, cfg.Password, client), nil
	}
	return nil, nil, service.Wrap(service.ErrConfig, fmt.Errorf("NewArchive: unknown archive kind: %s", cfg.Kind))
}
