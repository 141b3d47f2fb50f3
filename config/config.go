// Package config loads the description of a workflow run using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/spf13/viper"
)

const EnvPrefix = "AOIFETCH"

// Archive kinds
const (
	ArchiveCopernicus = "copernicus"
	ArchiveDHuS       = "dhus"
)

// Download modes
const (
	DownloadAll    = "all"
	DownloadSingle = "single"
	DownloadNone   = "none"
)

// AOIFromFootprint is the only supported source of the area of interest of the query
const AOIFromFootprint = "footprint"

// Config holds the description of a run
type Config struct {
	Workspace string         `mapstructure:"workspace"`
	Footprint string         `mapstructure:"footprint"`
	Steps     StepsConfig    `mapstructure:"steps"`
	Map       MapConfig      `mapstructure:"map"`
	Archive   ArchiveConfig  `mapstructure:"archive"`
	Query     QueryConfig    `mapstructure:"query"`
	Download  DownloadConfig `mapstructure:"download"`
	Unpack    UnpackConfig   `mapstructure:"unpack"`
	Scan      ScanConfig     `mapstructure:"scan"`
	Publish   PublishConfig  `mapstructure:"publish"`
	LogLevel  string         `mapstructure:"log_level"`
}

// StepsConfig enables or disables the steps of the workflow
type StepsConfig struct {
	Map      bool   `mapstructure:"map"`
	Search   bool   `mapstructure:"search"`
	Download string `mapstructure:"download"` // all, single or none
	Unpack   bool   `mapstructure:"unpack"`
	Scan     bool   `mapstructure:"scan"`
}

type MapConfig struct {
	File   string    `mapstructure:"file"`
	Center []float64 `mapstructure:"center"` // [lat, lon]. Empty: center of the footprint
	Zoom   int       `mapstructure:"zoom"`
	Title  string    `mapstructure:"title"`
}

// ArchiveConfig holds the connection to the imagery archive.
// Credentials are read from the environment (AOIFETCH_ARCHIVE_USERNAME, AOIFETCH_ARCHIVE_PASSWORD).
type ArchiveConfig struct {
	Kind        string `mapstructure:"kind"` // copernicus, dhus
	URL         string `mapstructure:"url"`
	AuthURL     string `mapstructure:"auth_url"`
	DownloadURL string `mapstructure:"download_url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type QueryConfig struct {
	AOI             string    `mapstructure:"aoi"`
	Start           string    `mapstructure:"start"` // YYYYMMDD
	End             string    `mapstructure:"end"`   // YYYYMMDD
	Platform        string    `mapstructure:"platform"`
	ProcessingLevel string    `mapstructure:"processing_level"`
	CloudCover      []float64 `mapstructure:"cloud_cover"` // [min, max]. Empty: no filter
	ProductsFile    string    `mapstructure:"products_file"`
}

type DownloadConfig struct {
	Product string `mapstructure:"product"` // id or name, for the single mode
	Dir     string `mapstructure:"dir"`
}

type UnpackConfig struct {
	Src string `mapstructure:"src"` // Default: download.dir
	Dst string `mapstructure:"dst"`
}

type ScanConfig struct {
	Root     string `mapstructure:"root"` // Default: unpack.dst
	Marker   string `mapstructure:"marker"`
	ListFile string `mapstructure:"list_file"`
}

// PublishConfig holds the storage where the hand-off files are copied (local path or gs://bucket/prefix). Optional.
type PublishConfig struct {
	URI string `mapstructure:"uri"`
}

// Defaults sets the default configuration values.
func Defaults(v *viper.Viper) {
	v.SetDefault("workspace", "")
	v.SetDefault("footprint", "my_aoi.geojson")

	v.SetDefault("steps.map", true)
	v.SetDefault("steps.search", true)
	v.SetDefault("steps.download", DownloadAll)
	v.SetDefault("steps.unpack", true)
	v.SetDefault("steps.scan", true)

	v.SetDefault("map.file", "mymap.html")
	v.SetDefault("map.center", []float64{})
	v.SetDefault("map.zoom", 8)
	v.SetDefault("map.title", "Area of interest")

	v.SetDefault("archive.kind", ArchiveCopernicus)
	v.SetDefault("archive.url", "")
	v.SetDefault("archive.auth_url", "")
	v.SetDefault("archive.download_url", "")
	v.SetDefault("archive.username", "")
	v.SetDefault("archive.password", "")

	v.SetDefault("query.aoi", AOIFromFootprint)
	v.SetDefault("query.start", "")
	v.SetDefault("query.end", "")
	v.SetDefault("query.platform", "Sentinel-2")
	v.SetDefault("query.processing_level", "Level-2A")
	v.SetDefault("query.cloud_cover", []float64{0, 5})
	v.SetDefault("query.products_file", "products.geojson")

	v.SetDefault("download.product", "")
	v.SetDefault("download.dir", "my_site_imagery")

	v.SetDefault("unpack.src", "")
	v.SetDefault("unpack.dst", "my_site_imagery_processed")

	v.SetDefault("scan.root", "")
	v.SetDefault("scan.marker", "R10")
	v.SetDefault("scan.list_file", "r10_dirs.txt")

	v.SetDefault("publish.uri", "")
	v.SetDefault("log_level", "info")
}

// Load loads the configuration from the file (optional), the environment (AOIFETCH_XXX)
// and the overrides (e.g. command line flags), in increasing order of priority.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()
	Defaults(v)

	// Environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return nil, service.Wrap(service.ErrFileNotFound, fmt.Errorf("config.Load: %w", err))
			}
			return nil, service.Wrap(service.ErrConfig, fmt.Errorf("config.Load: %w", err))
		}
		if v.InConfig("archive.password") {
			return nil, service.Wrapf(service.ErrConfig, "config.Load: archive.password must not be written in %s: use the environment variable %s_ARCHIVE_PASSWORD", configPath, EnvPrefix)
		}
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, service.Wrap(service.ErrConfig, fmt.Errorf("config.Load.Unmarshal: %w", err))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load.%w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Archive.Kind = strings.ToLower(c.Archive.Kind)
	c.Steps.Download = strings.ToLower(c.Steps.Download)
	if c.Unpack.Src == "" {
		c.Unpack.Src = c.Download.Dir
	}
	if c.Scan.Root == "" {
		c.Scan.Root = c.Unpack.Dst
	}
}

// NeedsArchive returns true if a step connects to the archive
func (c *Config) NeedsArchive() bool {
	return c.Steps.Search || c.Steps.Download != DownloadNone
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return service.Wrapf(service.ErrConfig, "Validate: workspace is required")
	}
	if c.Footprint == "" {
		return service.Wrapf(service.ErrConfig, "Validate: footprint is required")
	}
	if c.Query.AOI != "" && c.Query.AOI != AOIFromFootprint {
		return service.Wrapf(service.ErrConfig, "Validate: query.aoi must be '%s': the search area is the loaded footprint (got '%s')", AOIFromFootprint, c.Query.AOI)
	}
	if n := len(c.Map.Center); n != 0 && n != 2 {
		return service.Wrapf(service.ErrConfig, "Validate: map.center must be [lat, lon]")
	}
	if n := len(c.Query.CloudCover); n != 0 && n != 2 {
		return service.Wrapf(service.ErrConfig, "Validate: query.cloud_cover must be [min, max]")
	}

	switch c.Steps.Download {
	case DownloadAll:
		if !c.Steps.Search {
			return service.Wrapf(service.ErrConfig, "Validate: download of all the products requires the search step")
		}
	case DownloadSingle:
		if c.Download.Product == "" {
			return service.Wrapf(service.ErrConfig, "Validate: download.product is required in single mode")
		}
	case DownloadNone:
	default:
		return service.Wrapf(service.ErrConfig, "Validate: unknown download mode: '%s' (all, single, none)", c.Steps.Download)
	}

	if c.NeedsArchive() {
		switch c.Archive.Kind {
		case ArchiveCopernicus, ArchiveDHuS:
		default:
			return service.Wrapf(service.ErrConfig, "Validate: unknown archive kind: '%s' (%s, %s)", c.Archive.Kind, ArchiveCopernicus, ArchiveDHuS)
		}
	}
	if c.Steps.Search && (c.Query.Start == "" || c.Query.End == "") {
		return service.Wrapf(service.ErrConfig, "Validate: query.start and query.end are required (YYYYMMDD)")
	}
	if c.Steps.Scan && c.Scan.Marker == "" {
		return service.Wrapf(service.ErrConfig, "Validate: scan.marker is required")
	}
	return nil
}
