package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/airbusgeo/aoifetch/config"
	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/workflow"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const aoiGeoJSON = `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::4326"}},
"features":[{"type":"Feature","properties":{"name":"my_aoi"},"geometry":{"type":"Polygon","coordinates":[[[-120,49],[-119,49],[-119,50],[-120,50],[-120,49]]]}}]}`

var _ = Describe("Workflow", func() {
	var (
		ctx       context.Context
		hub       *fakeDHuS
		root      string
		overrides map[string]interface{}
		result    *workflow.Result
		runErr    error
	)

	var run = func() {
		cfg, err := config.Load("", overrides)
		Expect(err).NotTo(HaveOccurred())
		wf, err := workflow.NewWorkflow(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		result, runErr = wf.Run(ctx)
	}

	BeforeEach(func() {
		ctx = context.Background()
		hub = newFakeDHuS()
		var err error
		root, err = os.MkdirTemp("", "aoifetch")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(root, "my_aoi.geojson"), []byte(aoiGeoJSON), 0644)).To(Succeed())
		overrides = map[string]interface{}{
			"workspace":        root,
			"archive.kind":     config.ArchiveDHuS,
			"archive.url":      hub.URL,
			"archive.username": "user",
			"archive.password": "secret",
			"query.start":      "20200501",
			"query.end":        "20200701",
		}
	})

	AfterEach(func() {
		hub.Close()
		os.RemoveAll(root)
	})

	Context("with all the steps enabled", func() {
		BeforeEach(func() {
			overrides["publish.uri"] = filepath.Join(root, "published")
			run()
		})

		It("should succeed", func() {
			Expect(runErr).NotTo(HaveOccurred())
			Expect(result.RunID).NotTo(BeEmpty())
		})

		It("should load the footprint", func() {
			Expect(result.Footprint.Geometries).To(HaveLen(1))
			Expect(result.Footprint.CRS).To(Equal("urn:ogc:def:crs:EPSG::4326"))
		})

		It("should render the map", func() {
			Expect(result.MapFile).To(Equal(filepath.Join(root, "mymap.html")))
			html, err := os.ReadFile(result.MapFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(html)).To(ContainSubstring("L.geoJSON"))
		})

		It("should write the products", func() {
			Expect(result.Products.IDs()).To(Equal([]string{id1, id2}))
			b, err := os.ReadFile(result.ProductsFile)
			Expect(err).NotTo(HaveOccurred())
			fc := struct {
				Features []struct {
					ID string `json:"id"`
				} `json:"features"`
			}{}
			Expect(json.Unmarshal(b, &fc)).To(Succeed())
			Expect(fc.Features).To(HaveLen(2))
		})

		It("should download every product once", func() {
			Expect(hub.downloads).To(Equal(map[string]int{id1: 1, id2: 1}))
			Expect(result.Downloads.Files()).To(ConsistOf(
				filepath.Join(root, "my_site_imagery", name1+".zip"),
				filepath.Join(root, "my_site_imagery", name2+".zip"),
			))
		})

		It("should unpack and scan the products", func() {
			Expect(result.Extracted).To(HaveLen(2))
			Expect(result.Matched).To(Equal([]string{
				filepath.Join(root, "my_site_imagery_processed", name2+".SAFE/GRANULE/L2A_T10UGV/IMG_DATA/R10m"),
				filepath.Join(root, "my_site_imagery_processed", name1+".SAFE/GRANULE/L2A_T10UGV/IMG_DATA/R10m"),
			}))
			list, err := os.ReadFile(result.MatchedFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(list)).To(Equal(result.Matched[0] + "\n" + result.Matched[1] + "\n"))
		})

		It("should publish the hand-off files", func() {
			Expect(result.Published).To(HaveLen(3))
			_, err := os.Stat(filepath.Join(root, "published", result.RunID, "r10_dirs.txt"))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("with a footprint shared in the artifact store", func() {
		BeforeEach(func() {
			published := filepath.Join(root, "published")
			Expect(os.MkdirAll(published, 0755)).To(Succeed())
			Expect(os.Rename(filepath.Join(root, "my_aoi.geojson"), filepath.Join(published, "my_aoi.geojson"))).To(Succeed())
			overrides["publish.uri"] = published
			overrides["steps.search"] = false
			overrides["steps.download"] = config.DownloadNone
			overrides["steps.unpack"] = false
			overrides["steps.scan"] = false
			run()
		})

		It("should fetch it into the workspace", func() {
			Expect(runErr).NotTo(HaveOccurred())
			Expect(filepath.Join(root, "my_aoi.geojson")).To(BeAnExistingFile())
			Expect(result.Footprint.Geometries).To(HaveLen(1))
			Expect(result.MapFile).To(BeAnExistingFile())
		})
	})

	Context("downloading a single product", func() {
		BeforeEach(func() {
			overrides["steps.search"] = false
			overrides["steps.download"] = config.DownloadSingle
			overrides["download.product"] = name2
			run()
		})

		It("should download only this product", func() {
			Expect(runErr).NotTo(HaveOccurred())
			Expect(hub.downloads).To(Equal(map[string]int{id2: 1}))
			Expect(result.Extracted).To(HaveLen(1))
			Expect(result.Matched).To(HaveLen(1))
		})
	})

	Context("downloading an unknown product", func() {
		BeforeEach(func() {
			overrides["steps.search"] = false
			overrides["steps.download"] = config.DownloadSingle
			overrides["download.product"] = "S2A_MSIL2A_20200601T185921_N0214_R013_T10UFV_20200601T010342"
			run()
		})

		It("should fail with a product not found error", func() {
			var pnf service.ErrProductNotFound
			Expect(runErr).To(MatchError(service.ErrNotFound))
			Expect(errors.As(runErr, &pnf)).To(BeTrue())
			Expect(hub.downloads).To(BeEmpty())
		})
	})

	Context("with wrong credentials", func() {
		BeforeEach(func() {
			overrides["archive.password"] = "wrong"
			run()
		})

		It("should fail with an authentication error after rendering the map", func() {
			Expect(runErr).To(MatchError(service.ErrAuth))
			_, err := os.Stat(filepath.Join(root, "mymap.html"))
			Expect(err).NotTo(HaveOccurred())
			Expect(hub.downloads).To(BeEmpty())
		})
	})

	Context("with a corrupted archive", func() {
		BeforeEach(func() {
			hub.corrupt[id1] = true
			run()
		})

		It("should abort the unpacking", func() {
			Expect(runErr).To(MatchError(service.ErrArchive))
			Expect(hub.downloads).To(Equal(map[string]int{id1: 1, id2: 1}))
			// Archives are processed in name order: S2A (id2) before S2B (id1)
			Expect(result.Extracted).To(HaveLen(1))
			Expect(result.Matched).To(BeEmpty())
		})
	})

	Context("without footprint", func() {
		BeforeEach(func() {
			overrides["footprint"] = "missing.geojson"
			run()
		})

		It("should fail with a file not found error", func() {
			Expect(runErr).To(MatchError(service.ErrFileNotFound))
			Expect(result.MapFile).To(BeEmpty())
		})
	})

	Context("with a relative workspace", func() {
		BeforeEach(func() {
			overrides["workspace"] = "GIS_Data"
			run()
		})

		It("should fail with a configuration error", func() {
			Expect(runErr).To(MatchError(service.ErrConfig))
		})
	})
})
