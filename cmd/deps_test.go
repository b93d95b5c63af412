package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erpsync/internal/config"
	"github.com/acceslibre/erpsync/internal/model"
)

func TestOpenPool_NoURL(t *testing.T) {
	cfg = &config.Config{}
	_, err := openPool(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database_url")
}

func TestOpenLedger_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "runs.db"),
	}}

	st, err := openLedger(ctx, nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.StartRun(ctx, "gendarmerie")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunCounts{Imported: 1}))
}

func TestOpenLedger_UnknownDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}
	_, err := openLedger(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewGeocoder(t *testing.T) {
	cfg = &config.Config{Geocode: config.GeocodeConfig{
		Providers: []string{"ban", "osm"},
		MinScore:  0.4,
		Cache:     "sqlite",
		CachePath: filepath.Join(t.TempDir(), "cache.db"),
	}}
	chain, release, err := newGeocoder(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, chain)
	release()

	cfg.Geocode.Cache = "redis"
	_, _, err = newGeocoder(context.Background(), nil, nil)
	assert.Error(t, err)

	cfg.Geocode.Cache = "none"
	cfg.Geocode.Providers = []string{"google"}
	_, _, err = newGeocoder(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets:\n  - id: typeform\n    fetch:\n      location: /data/typeform.csv\n"), 0o644))
	cfg = &config.Config{Import: config.ImportConfig{DatasetsFile: path}}

	reg, err := loadRegistry()
	require.NoError(t, err)
	d, err := reg.Get("typeform")
	require.NoError(t, err)
	assert.Equal(t, "/data/typeform.csv", d.Fetch.Location)

	cfg.Import.DatasetsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = loadRegistry()
	assert.Error(t, err)
}

func TestWriteManualReport(t *testing.T) {
	lines := []string{"1;2;Need manual check for ERP Mairie with Mairie annexe"}

	var buf bytes.Buffer
	require.NoError(t, writeManualReport("", &buf, lines))
	assert.Equal(t, lines[0]+"\n", buf.String())

	path := filepath.Join(t.TempDir(), "manual.csv")
	buf.Reset()
	require.NoError(t, writeManualReport(path, &buf, lines))
	assert.Empty(t, buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, lines[0]+"\n", string(data))

	require.NoError(t, writeManualReport(path, &buf, nil))
}
