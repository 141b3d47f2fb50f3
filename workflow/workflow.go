package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/aoifetch/catalog"
	"github.com/airbusgeo/aoifetch/catalog/entities"
	"github.com/airbusgeo/aoifetch/config"
	"github.com/airbusgeo/aoifetch/downloader"
	"github.com/airbusgeo/aoifetch/footprint"
	"github.com/airbusgeo/aoifetch/interface/provider"
	"github.com/airbusgeo/aoifetch/mapview"
	"github.com/airbusgeo/aoifetch/scanner"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/log"
	"github.com/airbusgeo/aoifetch/unpacker"
	"github.com/airbusgeo/aoifetch/workspace"
	"github.com/google/uuid"
)

// Workflow runs the steps of an AOI imagery acquisition, sequentially:
// map of the footprint, search in the catalogue, download, unpack and scan of the products.
type Workflow struct {
	cfg           *config.Config
	catalog       *catalog.Catalog
	imageProvider provider.ImageProvider
	store         *service.ArtifactStore
}

// Result gathers what the run produced, even if it failed
type Result struct {
	RunID        string
	Workspace    workspace.Workspace
	Footprint    *footprint.Footprint
	MapFile      string
	Products     entities.Products
	ProductsFile string
	Downloads    downloader.Report
	Extracted    []string
	Matched      []string
	MatchedFile  string
	Published    []string
}

// NewWorkflow creates a workflow from the configuration, connecting to the archive if a step needs it
func NewWorkflow(ctx context.Context, cfg *config.Config) (*Workflow, error) {
	wf := &Workflow{cfg: cfg}
	if cfg.NeedsArchive() {
		productsProvider, imageProvider, err := NewArchive(cfg.Archive, nil)
		if err != nil {
			return nil, fmt.Errorf("NewWorkflow.%w", err)
		}
		wf.catalog = catalog.New(productsProvider)
		wf.imageProvider = imageProvider
	}
	if cfg.Publish.URI != "" {
		store, err := service.NewArtifactStore(ctx, cfg.Publish.URI)
		if err != nil {
			return nil, fmt.Errorf("NewWorkflow.%w", err)
		}
		wf.store = store
	}
	return wf, nil
}

// Run executes the enabled steps in order. The first error stops the run.
// What was produced before the error is kept (no rollback) and returned in the result.
func (wf *Workflow) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.New().String()}
	ctx = log.With(ctx, "run", res.RunID)
	lg := log.Logger(ctx).Sugar()

	var err error
	if res.Workspace, err = workspace.Open(wf.cfg.Workspace); err != nil {
		return res, fmt.Errorf("Run.%w", err)
	}
	ws := res.Workspace

	if err := wf.fetchFootprint(ctx, ws); err != nil {
		return res, fmt.Errorf("Run.%w", err)
	}
	lg.Infof("loading footprint %s", wf.cfg.Footprint)
	if res.Footprint, err = footprint.Load(ws.Path(wf.cfg.Footprint)); err != nil {
		return res, fmt.Errorf("Run.%w", err)
	}

	if wf.cfg.Steps.Map {
		if err := wf.renderMap(ctx, res); err != nil {
			return res, fmt.Errorf("Run.%w", err)
		}
	}

	if wf.cfg.Steps.Search {
		if err := wf.search(ctx, res); err != nil {
			return res, fmt.Errorf("Run.%w", err)
		}
	}

	switch wf.cfg.Steps.Download {
	case config.DownloadAll, config.DownloadSingle:
		if err := wf.download(ctx, res); err != nil {
			return res, fmt.Errorf("Run.%w", err)
		}
	}

	if wf.cfg.Steps.Unpack {
		lg.Infof("unpacking %s to %s", wf.cfg.Unpack.Src, wf.cfg.Unpack.Dst)
		if res.Extracted, err = unpacker.UnpackAll(ctx, ws.Path(wf.cfg.Unpack.Src), ws.Path(wf.cfg.Unpack.Dst)); err != nil {
			return res, fmt.Errorf("Run.%w", err)
		}
	}

	if wf.cfg.Steps.Scan {
		if err := wf.scan(ctx, res); err != nil {
			return res, fmt.Errorf("Run.%w", err)
		}
	}

	if wf.store != nil {
		if err := wf.publish(ctx, res); err != nil {
			return res, fmt.Errorf("Run.%w", err)
		}
	}
	lg.Infof("done")
	return res, nil
}

// fetchFootprint retrieves the footprint from the root of the artifact store
// when it is not in the workspace (footprint shared between sites or runs)
func (wf *Workflow) fetchFootprint(ctx context.Context, ws workspace.Workspace) error {
	if wf.store == nil {
		return nil
	}
	local := ws.Path(wf.cfg.Footprint)
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		return nil
	}
	name := filepath.Base(wf.cfg.Footprint)
	log.Logger(ctx).Sugar().Infof("fetching footprint %s from %s", name, wf.cfg.Publish.URI)
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return service.Wrap(service.ErrStorage, fmt.Errorf("fetchFootprint: %w", err))
	}
	if err := wf.store.Fetch(ctx, name, local); err != nil {
		return fmt.Errorf("fetchFootprint.%w", err)
	}
	return nil
}

func (wf *Workflow) renderMap(ctx context.Context, res *Result) error {
	var center mapview.LatLng
	if c := wf.cfg.Map.Center; len(c) == 2 {
		center = mapview.LatLng{Lat: c[0], Lng: c[1]}
	} else {
		var err error
		if center.Lat, center.Lng, err = res.Footprint.Center(); err != nil {
			return fmt.Errorf("renderMap.%w", err)
		}
	}
	m, err := mapview.New(center, wf.cfg.Map.Zoom)
	if err != nil {
		return fmt.Errorf("renderMap.%w", err)
	}
	m.Title = wf.cfg.Map.Title
	if err := m.AddGeoJSON(filepath.Base(wf.cfg.Footprint), res.Footprint.Geometries...); err != nil {
		return fmt.Errorf("renderMap.%w", err)
	}
	mapFile := res.Workspace.Path(wf.cfg.Map.File)
	if err := m.Save(mapFile); err != nil {
		return fmt.Errorf("renderMap.%w", err)
	}
	res.MapFile = mapFile
	log.Logger(ctx).Sugar().Infof("map saved to %s", mapFile)
	return nil
}

// Query returns the catalogue query of the configuration, on the area of the footprint
func (wf *Workflow) Query(fp *footprint.Footprint) (entities.Query, error) {
	qc := wf.cfg.Query
	start, end, err := entities.ParseDateRange(qc.Start, qc.End)
	if err != nil {
		return entities.Query{}, fmt.Errorf("Query.%w", err)
	}
	aoi, err := fp.WKT()
	if err != nil {
		return entities.Query{}, fmt.Errorf("Query.%w", err)
	}
	q := entities.Query{
		AOI:             aoi,
		Start:           start,
		End:             end,
		Platform:        qc.Platform,
		ProcessingLevel: qc.ProcessingLevel,
	}
	if len(qc.CloudCover) == 2 {
		q.CloudCover = &entities.Range{Min: qc.CloudCover[0], Max: qc.CloudCover[1]}
	}
	return q, nil
}

func (wf *Workflow) search(ctx context.Context, res *Result) error {
	q, err := wf.Query(res.Footprint)
	if err != nil {
		return fmt.Errorf("search.%w", err)
	}
	if res.Products, err = wf.catalog.Search(ctx, q); err != nil {
		return fmt.Errorf("search.%w", err)
	}
	productsFile := res.Workspace.Path(wf.cfg.Query.ProductsFile)
	if err := res.Products.WriteGeoJSON(productsFile); err != nil {
		return fmt.Errorf("search.%w", err)
	}
	res.ProductsFile = productsFile
	return nil
}

func (wf *Workflow) download(ctx context.Context, res *Result) error {
	d := downloader.Downloader{
		Provider: wf.imageProvider,
		Resolver: wf.catalog,
		Dir:      res.Workspace.Path(wf.cfg.Download.Dir),
	}
	if wf.cfg.Steps.Download == config.DownloadSingle {
		r, err := d.Download(ctx, wf.cfg.Download.Product)
		res.Downloads = downloader.Report{Results: []downloader.Result{r}}
		if err != nil {
			return fmt.Errorf("download.%w", err)
		}
		return nil
	}
	res.Downloads = d.DownloadAll(ctx, res.Products)
	if err := res.Downloads.Err(); err != nil {
		return fmt.Errorf("download: %d/%d failed: %w", len(res.Downloads.Failed()), len(res.Downloads.Results), err)
	}
	return nil
}

func (wf *Workflow) scan(ctx context.Context, res *Result) error {
	processed, err := res.Workspace.Sub(wf.cfg.Scan.Root)
	if err != nil {
		return fmt.Errorf("scan.%w", err)
	}
	if res.Matched, err = scanner.Scan(processed.Root(), wf.cfg.Scan.Marker); err != nil {
		return fmt.Errorf("scan.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("%d directories matching '%s'", len(res.Matched), wf.cfg.Scan.Marker)
	if wf.cfg.Scan.ListFile != "" {
		listFile := res.Workspace.Path(wf.cfg.Scan.ListFile)
		if err := scanner.WriteList(listFile, res.Matched); err != nil {
			return fmt.Errorf("scan.%w", err)
		}
		res.MatchedFile = listFile
	}
	return nil
}

// publish copies the hand-off files to the artifact store, under the id of the run
func (wf *Workflow) publish(ctx context.Context, res *Result) error {
	for _, f := range []string{res.MapFile, res.ProductsFile, res.MatchedFile} {
		if f == "" {
			continue
		}
		uri, err := wf.store.Publish(ctx, f, res.RunID+"/"+filepath.Base(f))
		if err != nil {
			return fmt.Errorf("publish.%w", err)
		}
		log.Logger(ctx).Sugar().Infof("%s published to %s", filepath.Base(f), uri)
		res.Published = append(res.Published, uri)
	}
	return nil
}
