package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/mapper"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	var ids []string
	for _, d := range r.All() {
		ids = append(ids, d.ID)
		_, err := mapper.Get(d.Mapper)
		assert.NoError(t, err, d.ID)
	}
	assert.Equal(t, []string{"gendarmerie", "vaccination", "service-public", "nestenn", "typeform", "generic"}, ids)

	d, err := r.Get("gendarmerie")
	require.NoError(t, err)
	assert.Equal(t, ";", d.Fetch.Delimiter)

	_, err = r.Get("unknown")
	assert.Error(t, err)
}

func TestDefinition_Validate(t *testing.T) {
	d, err := NewRegistry().Get("vaccination")
	require.NoError(t, err)

	err = d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no location")

	d.Fetch.Location = "https://example.org/centres.json"
	assert.NoError(t, d.Validate())

	d.Mapper = "nope"
	assert.Error(t, d.Validate())

	d.Mapper = mapper.IDGeneric
	d.Source = "nope"
	assert.Error(t, d.Validate())
}

func TestRegistry_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
datasets:
  - id: gendarmerie
    fetch:
      location: ftp://data.example.org/gendarmerie.csv
  - id: cinemas
    mapper: generic
    activite: Cinéma
    fetch:
      location: /data/cinemas.zip
      format: zip
      entries: .csv
      entry_format: csv
`), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadFile(path))

	g, err := r.Get("gendarmerie")
	require.NoError(t, err)
	assert.Equal(t, "ftp://data.example.org/gendarmerie.csv", g.Fetch.Location)
	assert.Equal(t, fetcher.FormatCSV, g.Fetch.Format)
	assert.Equal(t, ";", g.Fetch.Delimiter)
	assert.Equal(t, mapper.IDGendarmerie, g.Mapper)
	assert.NoError(t, g.Validate())

	c, err := r.Get("cinemas")
	require.NoError(t, err)
	assert.Equal(t, "Cinéma", c.Activite)
	assert.Equal(t, fetcher.FormatZIP, c.Fetch.Format)
	assert.Equal(t, fetcher.FormatCSV, c.Fetch.EntryFormat)
	assert.NoError(t, c.Validate())

	all := r.All()
	assert.Equal(t, "cinemas", all[len(all)-1].ID)
	assert.Len(t, all, 7)
}

func TestRegistry_LoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	assert.Error(t, r.LoadFile(filepath.Join(dir, "missing.yaml")))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("datasets:\n  - mapper: generic\n"), 0o644))
	assert.Error(t, r.LoadFile(bad))
}
