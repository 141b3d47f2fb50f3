package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airbusgeo/aoifetch/config"
	"github.com/airbusgeo/aoifetch/service/log"
	"github.com/airbusgeo/aoifetch/workflow"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type appConfig struct {
	ConfigFile string
	LogLevel   string
	ServeAddr  string
	Overrides  map[string]interface{}
}

func newAppConfig() (*appConfig, error) {
	configFile := flag.String("config", "", "configuration file (yaml, json, toml). Optional: the environment (AOIFETCH_XXX) and the flags can be used instead")
	workspace := flag.String("workspace", "", "absolute path of the workspace (overrides workspace)")
	footprint := flag.String("footprint", "", "GeoJSON file of the area of interest, relative to the workspace (overrides footprint)")
	download := flag.String("download", "", "download mode: all, single or none (overrides steps.download)")
	product := flag.String("product", "", "id or name of the product to download in single mode (overrides download.product)")
	start := flag.String("start", "", "start date of the search YYYYMMDD (overrides query.start)")
	end := flag.String("end", "", "end date of the search YYYYMMDD (overrides query.end)")
	serve := flag.String("serve", "", "address (e.g. 127.0.0.1:8080) to serve the map and the whole workspace (read-only) after the run. Optional. An address without host (:8080) listens on all interfaces")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides log_level)")
	flag.Parse()

	overrides := map[string]interface{}{}
	for k, v := range map[string]*string{
		"workspace":        workspace,
		"footprint":        footprint,
		"steps.download":   download,
		"download.product": product,
		"query.start":      start,
		"query.end":        end,
		"log_level":        logLevel,
	} {
		if *v != "" {
			overrides[k] = *v
		}
	}
	if *product != "" && *download == "" {
		overrides["steps.download"] = config.DownloadSingle
	}
	if flag.NArg() != 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flag.Args())
	}

	return &appConfig{
		ConfigFile: *configFile,
		LogLevel:   *logLevel,
		ServeAddr:  *serve,
		Overrides:  overrides,
	}, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	appCfg, err := newAppConfig()
	if err != nil {
		return err
	}

	cfg, err := config.Load(appCfg.ConfigFile, appCfg.Overrides)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "" {
		if err := log.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	wf, err := workflow.NewWorkflow(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := wf.Run(ctx)
	if err != nil {
		return err
	}
	log.Logger(ctx).Sugar().Infof("run %s: %d products found, %d downloaded, %d archives extracted, %d directories matching %s",
		res.RunID, res.Products.Len(), len(res.Downloads.Files()), len(res.Extracted), len(res.Matched), cfg.Scan.Marker)

	if appCfg.ServeAddr == "" {
		return nil
	}
	return serve(ctx, appCfg.ServeAddr, res)
}

// serve exposes the map, the products and the workspace (read-only) until the context is done
func serve(ctx context.Context, addr string, res *workflow.Result) error {
	r := mux.NewRouter()
	if res.MapFile != "" {
		r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, res.MapFile)
		}).Methods("GET")
	}
	if res.ProductsFile != "" {
		r.HandleFunc("/products.geojson", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/geo+json")
			http.ServeFile(w, req, res.ProductsFile)
		}).Methods("GET")
	}
	r.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(res.Workspace.Root())))).Methods("GET")

	s := http.Server{
		Addr:    addr,
		Handler: handlers.CombinedLoggingHandler(os.Stdout, r),
	}
	errc := make(chan error, 1)
	go func() {
		errc <- s.ListenAndServe()
	}()
	log.Logger(ctx).Sugar().Infof("serving %s on %s", res.Workspace.Root(), addr)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}
