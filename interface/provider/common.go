package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/log"
	"github.com/cavaliercoder/grab"
)

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

// ArchivePath returns the path of the archive of the product in the directory
func ArchivePath(dir string, product entities.Product) string {
	return filepath.Join(dir, product.Name()+".zip")
}

type auth struct {
	user, pword string
	token       string
}

func downloadZipWithAuth(ctx context.Context, client *http.Client, url, localDir string, product entities.Product, provider string, a auth, copyAuthOnRedirect bool) (string, error) {
	localZip := ArchivePath(localDir, product)
	req, err := grab.NewRequest(localZip, url)
	if err != nil {
		return "", service.Wrap(service.ErrQuery, fmt.Errorf("downloadZipWithAuth.NewRequest: %w", err))
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	// If Basic Auth
	if a.user != "" {
		req.HTTPRequest.SetBasicAuth(a.user, a.pword)
	}

	// If token Auth
	if a.token != "" {
		req.HTTPRequest.Header.Set("Authorization", "Bearer "+a.token)
	}

	if err := download(ctx, client, req, provider+":"+product.Name(), copyAuthOnRedirect); err != nil {
		os.Remove(localZip)
		var pnf service.ErrProductNotFound
		if errors.As(err, &pnf) {
			pnf.Product = product.ID
			return "", pnf
		}
		return "", fmt.Errorf("downloadZipWithAuth.%w", err)
	}
	return localZip, nil
}

func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Set("Authorization", auth[0])
	}
	return nil
}

// download a file with display every 5%
func download(ctx context.Context, httpClient *http.Client, req *grab.Request, displayPrefix string, copyAuthOnRedirect bool) error {
	client := grab.NewClient()
	if httpClient != nil {
		c := *httpClient
		client.HTTPClient = &c
	}
	if copyAuthOnRedirect {
		client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	}
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		var perr *os.PathError
		if errors.As(err, &perr) {
			return service.Wrap(service.ErrStorage, err)
		}
		if resp.HTTPResponse == nil {
			return service.TransportError(service.ErrNetwork, err)
		}
		switch code := resp.HTTPResponse.StatusCode; code {
		case http.StatusNotFound:
			return service.ErrProductNotFound{}
		case http.StatusUnauthorized, http.StatusForbidden:
			return service.Wrap(service.ErrAuth, err)
		case 408, 429, 500, 501, 502, 503, 504:
			return service.Wrap(service.ErrNetwork, service.MakeTemporary(err))
		default:
			if code >= 200 && code < 300 {
				// The transfer started but did not complete
				return service.TransportError(service.ErrNetwork, err)
			}
			return service.Wrap(service.ErrNetwork, err)
		}
	}
	log.Logger(ctx).Sugar().Debugf("%s: downloaded %s in %s", displayPrefix, fmtBytes(resp.BytesComplete()), resp.Duration().Round(time.Second))
	return nil
}
