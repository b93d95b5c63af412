package fetcher

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestLocator(t *testing.T) *Locator {
	t.Helper()
	return NewLocator(
		NewHTTPFetcher(HTTPOptions{UserAgent: "test-agent", Timeout: 5 * time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}),
		NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second}),
		t.TempDir(),
	)
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, src Source) ([]RawRow, error) {
	t.Helper()
	rowCh, errCh := src.Rows(context.Background())
	var rows []RawRow
	for r := range rowCh {
		rows = append(rows, r)
	}
	return rows, <-errCh
}

func TestSource_CSVLocalFile(t *testing.T) {
	path := writeTestFile(t, "gendarmeries.csv",
		"\ufeffidentifiant_public_unite;service;voie\n"+
			"1008620;Brigade de Bourg;1 rue de la Gare\n"+
			";;\n"+
			"1008621;Brigade de Nantua; 3 avenue Foch \n")

	src, err := newTestLocator(t).Source(Spec{Location: path, Format: FormatCSV, Delimiter: ";"})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, []string{"identifiant_public_unite", "service", "voie"}, rows[0].Columns)
	assert.Equal(t, "1008620", rows[0].String("identifiant_public_unite"))
	assert.Equal(t, 2, rows[1].Line)
	assert.Equal(t, "3 avenue Foch", rows[1].String("voie"))
}

func TestSource_CSVDeclaredHeader(t *testing.T) {
	path := writeTestFile(t, "data.csv", "a,1\nb,2\n")

	src, err := newTestLocator(t).Source(Spec{Location: path, Format: FormatCSV, Header: []string{"name", "n"}})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].String("name"))
	assert.Equal(t, "2", rows[1].String("n"))
}

func TestSource_CSVShortRow(t *testing.T) {
	path := writeTestFile(t, "data.csv", "a,b,c\n1,2\n")

	src, err := newTestLocator(t).Source(Spec{Location: path, Format: FormatCSV})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, ok := rows[0].Get("c")
	assert.False(t, ok)
	assert.Equal(t, "", rows[0].String("c"))
}

func TestSource_JSONArrayOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"nom":"Mairie","id":12},{"nom":"Poste","id":13.5}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	src, err := newTestLocator(t).Source(Spec{Location: srv.URL + "/feed.json", Format: FormatJSON})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Mairie", rows[0].String("nom"))
	assert.Equal(t, "12", rows[0].String("id"))
	assert.Equal(t, "13.5", rows[1].String("id"))
}

func TestSource_JSONUnwrapPath(t *testing.T) {
	path := writeTestFile(t, "centres.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"c_gid": 1, "c_nom": "Centre A"}, "geometry": {"type": "Point", "coordinates": [2.35, 48.85]}},
			{"type": "Feature", "properties": {"c_gid": 2, "c_nom": "Centre B"}, "geometry": null}
		]
	}`)

	src, err := newTestLocator(t).Source(Spec{Location: path, Format: FormatJSON, Path: "features"})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].String("properties.c_gid"))
	assert.Equal(t, "Centre B", rows[1].String("properties.c_nom"))

	coords, ok := rows[0].Get("geometry.coordinates")
	require.True(t, ok)
	assert.Equal(t, []any{2.35, 48.85}, coords)
	assert.Equal(t, "", rows[1].String("geometry.type"))
}

func TestSource_JSONNestedPath(t *testing.T) {
	path := writeTestFile(t, "feed.json", `{"data":{"items":[{"x":"1"}]}}`)

	src, err := newTestLocator(t).Source(Spec{Location: path, Format: FormatJSON, Path: "data.items"})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].String("x"))
}

func TestSource_JSONMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
		wantErr string
	}{
		{name: "object without path", content: `{"a":1}`, wantErr: "expected '['"},
		{name: "missing key", content: `{"a":[]}`, path: "features", wantErr: "missing key"},
		{name: "not an array", content: `{"features":{}}`, path: "features", wantErr: "is not an array"},
		{name: "scalar element", content: `{"features":[1]}`, path: "features", wantErr: "is not an object"},
		{name: "truncated", content: `[{"a":1},{"b"`, wantErr: "decode element"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestFile(t, "feed.json", tt.content)
			src, err := newTestLocator(t).Source(Spec{Location: path, Format: FormatJSON, Path: tt.path})
			require.NoError(t, err)

			_, err = collect(t, src)
			require.Error(t, err)
			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, path, fe.Location)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSource_ZIPFilteredEntries(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for _, e := range []struct{ name, body string }{
		{"readme.txt", "ignore me"},
		{"erp-part1.csv", "nom,code_postal\nA,01000\n"},
		{"erp-part2.csv", "nom,code_postal\nB,75002\nC,69001\n"},
	} {
		fw, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	src, err := newTestLocator(t).Source(Spec{Location: zipPath, Format: FormatZIP, Entries: "erp-"})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].String("nom"))
	assert.Equal(t, "C", rows[2].String("nom"))
	assert.Equal(t, 3, rows[2].Line)
}

func TestSource_ZIPNoMatchingEntry(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	_, err = w.Create("other.csv")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	src, err := newTestLocator(t).Source(Spec{Location: zipPath, Format: FormatZIP, Entries: "erp"})
	require.NoError(t, err)

	_, err = collect(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry matching")
}

func TestSource_XLSXOverHTTP(t *testing.T) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Export")
	require.NoError(t, err)
	for _, values := range [][]string{
		{"nom", "code_postal", "entree_plain_pied"},
		{"Boulangerie", "34830", "Oui"},
		{"", "", ""},
		{"Pharmacie", "01000", "Non"},
	} {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	xlsxPath := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, file.Save(xlsxPath))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, xlsxPath)
	}))
	defer srv.Close()

	loc := newTestLocator(t)
	src, err := loc.Source(Spec{Location: srv.URL + "/export.xlsx", Format: FormatXLSX})
	require.NoError(t, err)

	rows, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Boulangerie", rows[0].String("nom"))
	assert.Equal(t, "Non", rows[1].String("entree_plain_pied"))

	// The temporary download is removed once the stream ends.
	entries, err := os.ReadDir(loc.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSource_HTTPStatusIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src, err := newTestLocator(t).Source(Spec{Location: srv.URL + "/missing.csv", Format: FormatCSV})
	require.NoError(t, err)

	rows, err := collect(t, src)
	assert.Empty(t, rows)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestSource_MissingLocalFile(t *testing.T) {
	src, err := newTestLocator(t).Source(Spec{Location: "/nonexistent/file.csv", Format: FormatCSV})
	require.NoError(t, err)

	_, err = collect(t, src)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "/nonexistent/file.csv", fe.Location)
}

func TestSource_ContextCancelled(t *testing.T) {
	path := writeTestFile(t, "data.csv", "a\n1\n2\n3\n")
	src, err := newTestLocator(t).Source(Spec{Location: path, Format: FormatCSV})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rowCh, errCh := src.Rows(ctx)
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, Spec{Location: "x.csv", Format: FormatCSV}.Validate())
	assert.Error(t, Spec{Format: FormatCSV}.Validate())
	assert.Error(t, Spec{Location: "x.xml", Format: "xml"}.Validate())

	_, err := newTestLocator(t).Source(Spec{Location: "x", Format: "parquet"})
	assert.Error(t, err)
}

func TestLocator_FileScheme(t *testing.T) {
	path := writeTestFile(t, "data.csv", "a\n1\n")

	rc, err := newTestLocator(t).Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
}

func TestRawRow_Get(t *testing.T) {
	row := RawRow{Values: map[string]any{
		"properties": map[string]any{"c_gid": float64(42), "flag": true, "none": nil},
		"name":       " Mairie ",
	}}

	assert.Equal(t, "42", row.String("properties.c_gid"))
	assert.Equal(t, "true", row.String("properties.flag"))
	assert.Equal(t, "", row.String("properties.none"))
	assert.Equal(t, "Mairie", row.String("name"))
	_, ok := row.Get("name.sub")
	assert.False(t, ok)
	_, ok = row.Get("properties.missing")
	assert.False(t, ok)
}

func TestFetchError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := fetchErr("http://x", inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "fetch http://x: boom", err.Error())
	assert.Same(t, err, fetchErr("other", err))
}
