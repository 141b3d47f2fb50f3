package downloader

import (
	"context"
	"fmt"
	"os"

	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/interface/provider"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/log"
	"github.com/google/uuid"
)

// Resolver retrieves the metadata of a product from its id or name
type Resolver interface {
	Product(ctx context.Context, idOrName string) (entities.Product, error)
}

// Downloader downloads the archives of the products into Dir
type Downloader struct {
	Provider provider.ImageProvider
	Resolver Resolver // Optional. Without resolver, single downloads require a product id
	Dir      string
}

// Result is the outcome of the download of one product
type Result struct {
	Product entities.Product
	File    string
	Err     error
}

// Report gathers the results of a batch, in the order of the products
type Report struct {
	Results []Result
}

// Files returns the archives successfully downloaded
func (r Report) Files() []string {
	var files []string
	for _, res := range r.Results {
		if res.Err == nil {
			files = append(files, res.File)
		}
	}
	return files
}

// Failed returns the results in error
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err merges the errors of the batch (nil if all the products are downloaded)
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Product.ID, res.Err))
	}
	return service.MergeErrors(true, nil, errs...)
}

func (d *Downloader) mkdir() error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return service.Wrap(service.ErrStorage, fmt.Errorf("make directory %s: %w", d.Dir, err))
	}
	return nil
}

// DownloadAll downloads every product, in order, with exactly one attempt per product.
// A failure is recorded and does not stop the batch.
func (d *Downloader) DownloadAll(ctx context.Context, products entities.Products) Report {
	report := Report{}
	if err := d.mkdir(); err != nil {
		for _, p := range products.All() {
			report.Results = append(report.Results, Result{Product: p, Err: err})
		}
		return report
	}

	all := products.All()
	for i, p := range all {
		log.Logger(ctx).Sugar().Infof("downloading %s (%d/%d)", p.Name(), i+1, len(all))
		res := d.download(ctx, p)
		if res.Err != nil {
			log.Logger(ctx).Sugar().Warnf("download %s failed: %v", p.Name(), res.Err)
		}
		report.Results = append(report.Results, res)
	}
	log.Logger(ctx).Sugar().Infof("%d/%d products downloaded", len(report.Files()), len(all))
	return report
}

// Download downloads one product given its id or its name.
// Unknown products return a service.ErrProductNotFound.
func (d *Downloader) Download(ctx context.Context, idOrName string) (Result, error) {
	var product entities.Product
	if d.Resolver != nil {
		var err error
		if product, err = d.Resolver.Product(ctx, idOrName); err != nil {
			return Result{Product: entities.Product{ID: idOrName}, Err: err}, fmt.Errorf("Download.%w", err)
		}
	} else if id, err := uuid.Parse(idOrName); err == nil {
		product = entities.Product{ID: id.String(), Identifier: id.String()}
	} else {
		err := service.Wrapf(service.ErrConfig, "Download: %s is not a product id and no catalogue is available to resolve it", idOrName)
		return Result{Product: entities.Product{ID: idOrName}, Err: err}, err
	}

	if err := d.mkdir(); err != nil {
		return Result{Product: product, Err: err}, fmt.Errorf("Download.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("downloading %s", product.Name())
	res := d.download(ctx, product)
	if res.Err != nil {
		return res, fmt.Errorf("Download.%w", res.Err)
	}
	return res, nil
}

func (d *Downloader) download(ctx context.Context, p entities.Product) Result {
	file, err := d.Provider.Download(ctx, p, d.Dir)
	return Result{Product: p, File: file, Err: err}
}
