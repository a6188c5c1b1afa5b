package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uavsar/internal/catalog"
	"github.com/banshee-data/uavsar/internal/testutil"
)

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := parseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, ".", opts.WorkDir)
	assert.True(t, opts.Overwrite)
	assert.False(t, opts.ContinueOnError)
	assert.Equal(t, -1, opts.Preview)
	assert.Empty(t, opts.set)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testutil.WriteFile(t, dir, "uavsar.json",
		[]byte(`{"overwrite": false, "continue_on_error": true, "raster_dir": "tiffs/"}`))

	opts, err := parseArgs([]string{"-config", cfgPath})
	require.NoError(t, err)
	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.False(t, cfg.GetOverwrite())
	assert.True(t, cfg.GetContinueOnError())
	assert.Equal(t, "tiffs/", cfg.Layout().RasterDir)

	opts, err = parseArgs([]string{"-config", cfgPath, "-overwrite", "-continue-on-error=false"})
	require.NoError(t, err)
	cfg, err = loadConfig(opts)
	require.NoError(t, err)
	assert.True(t, cfg.GetOverwrite())
	assert.False(t, cfg.GetContinueOnError())
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Scene", "Products"}, [][]string{{"a", "2"}, {"b"}}, 1)
	assert.Contains(t, out, "SCENE")
	assert.Contains(t, out, "╭")
	assert.Len(t, strings.Split(out, "\n"), 6, out)

	assert.Empty(t, renderTable(nil, nil))
}

func TestRun_RequiresURL(t *testing.T) {
	opts, err := parseArgs(nil)
	require.NoError(t, err)

	err = run(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "-url")
}

func TestRun_ListNeedsCatalog(t *testing.T) {
	opts, err := parseArgs([]string{"-list"})
	require.NoError(t, err)

	err = run(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "catalog")
}

func sceneArchive(t *testing.T) []byte {
	t.Helper()
	return testutil.ZipBytes(t,
		testutil.ZipEntry{Name: "scene_HH.ann", Data: []byte(testutil.AnnotationText("grd_pwr", 3, 4,
			&testutil.Geo{Lat: 34.5, Lon: -118.25, LatStep: -0.0001, LonStep: 0.0001}))},
		testutil.ZipEntry{Name: "scene_VV.ann", Data: []byte(testutil.AnnotationText("grd_pwr", 3, 4, nil))},
		testutil.ZipEntry{Name: "scene_L090HHHH_CX_01.grd", Data: testutil.Float32LE(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, -10000)},
		testutil.ZipEntry{Name: "scene_L090VVVV_CX_01.grd", Data: testutil.Float32LE(2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2)},
	)
}

func TestRun_SceneEndToEnd(t *testing.T) {
	archive := sceneArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/scene_L090_CX_01_grd.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(archive)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	catalogPath := filepath.Join(t.TempDir(), "catalog.db")
	opts, err := parseArgs([]string{
		"-url", srv.URL + "/data/scene_L090_CX_01_grd.zip",
		"-workdir", workDir,
		"-preview", "0",
		"-histogram",
		"-catalog", catalogPath,
	})
	require.NoError(t, err)

	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), opts, &bytes.Buffer{}, &stderr))

	for _, rel := range []string{
		"tmp/scene_L090_CX_01_grd.zip",
		"tmp/bin_imgs/scene_HH.ann",
		"rasters/scene_L090HHHH_CX_01.img",
		"rasters/scene_L090HHHH_CX_01.hdr",
		"rasters/scene_L090VVVV_CX_01.img",
		"previews/scene_L090HHHH_CX_01_0.png",
		"previews/scene_L090HHHH_CX_01_0.html",
	} {
		_, err := os.Stat(filepath.Join(workDir, rel))
		assert.NoError(t, err, rel)
	}
	assert.Contains(t, stderr.String(), "2 images converted")

	hdr, err := os.ReadFile(filepath.Join(workDir, "rasters/scene_L090HHHH_CX_01.hdr"))
	require.NoError(t, err)
	assert.Contains(t, string(hdr), "map info")

	store, err := catalog.Open(catalogPath)
	require.NoError(t, err)
	defer store.Close()
	scenes, err := store.ListScenes("")
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	products, err := store.ListProducts(scenes[0].SceneID)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	var stdout bytes.Buffer
	require.NoError(t, listScenes(&stdout, store))
	assert.Contains(t, stdout.String(), "scene_L090_CX_01_grd.zip")
	assert.Contains(t, stdout.String(), scenes[0].SceneID)
}

func TestRun_SceneMissingAnnotationFails(t *testing.T) {
	archive := testutil.ZipBytes(t,
		testutil.ZipEntry{Name: "scene_HH.ann", Data: []byte(testutil.AnnotationText("grd_pwr", 1, 1, nil))},
		testutil.ZipEntry{Name: "scene_L090VVVV_CX_01.grd", Data: testutil.Float32LE(1)},
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	opts, err := parseArgs([]string{"-url", srv.URL + "/s.zip", "-workdir", t.TempDir()})
	require.NoError(t, err)

	err = run(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no VV annotation")
}

func TestRun_SingleImage(t *testing.T) {
	ann := testutil.AnnotationText("grd_pwr", 2, 2, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Base(r.URL.Path) {
		case "site_L090HHHH_CX_01.grd":
			w.Write(testutil.Float32LE(1, 2, 3, 4))
		case "site_L090_CX_01.ann":
			w.Write([]byte(ann))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	workDir := t.TempDir()
	opts, err := parseArgs([]string{"-url", srv.URL + "/site_L090HHHH_CX_01.grd", "-workdir", workDir, "-preview", "0"})
	require.NoError(t, err)

	require.NoError(t, run(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{}))
	assert.FileExists(t, filepath.Join(workDir, "rasters", "site_L090HHHH_CX_01.img"))
	assert.FileExists(t, filepath.Join(workDir, "previews", "site_L090HHHH_CX_01.png"))
}
