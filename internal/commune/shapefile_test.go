package commune

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "COMMUNE.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField(CodeField, 5), shp.StringField("NOM", 40)}))

	square := func(x, y float64) *shp.Polygon {
		return &shp.Polygon{
			NumParts:  1,
			NumPoints: 5,
			Parts:     []int32{0},
			Points: []shp.Point{
				{X: x, Y: y}, {X: x, Y: y + 1}, {X: x + 1, Y: y + 1}, {X: x + 1, Y: y}, {X: x, Y: y},
			},
		}
	}

	for i, c := range []struct {
		code, nom string
		x, y      float64
	}{
		{"01004", "Amberieu-en-Bugey", 5, 45},
		{"", "Sans code", 6, 45},
		{"34120", "Lunel", 4, 43},
	} {
		n := w.Write(square(c.x, c.y))
		require.Equal(t, int32(i), n)
		require.NoError(t, w.WriteAttribute(int(n), 0, c.code))
		require.NoError(t, w.WriteAttribute(int(n), 1, c.nom))
	}
	w.Close()
	// go-shp names the attribute file "COMMUNEdbf".
	require.NoError(t, os.Rename(filepath.Join(dir, "COMMUNEdbf"), filepath.Join(dir, "COMMUNE.dbf")))
	return path
}

func TestReadShapefileContours(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir())

	got, err := ReadShapefileContours(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, decodeMultiPolygon(t, got["01004"]).NumPolygons())
	assert.Contains(t, got, "34120")
}

func TestReadShapefileContours_Zip(t *testing.T) {
	dir := t.TempDir()
	writeTestShapefile(t, dir)

	zipPath := filepath.Join(t.TempDir(), "admin-express.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src, err := os.Open(filepath.Join(dir, "COMMUNE"+ext))
		require.NoError(t, err)
		dst, err := zw.Create("ADMIN-EXPRESS/COMMUNE" + ext)
		require.NoError(t, err)
		_, err = io.Copy(dst, src)
		require.NoError(t, err)
		src.Close()
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err := ReadShapefileContours(zipPath)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReadShapefileContours_MissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("CODE", 5)}))
	w.Close()

	_, err = ReadShapefileContours(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no INSEE_COM field")
}

type fakeContourWriter struct {
	got map[string][]byte
}

func (w *fakeContourWriter) SetContours(_ context.Context, contours map[string][]byte) (int64, error) {
	w.got = contours
	return int64(len(contours)), nil
}

func TestLoadShapefile(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir())
	w := &fakeContourWriter{}

	n, err := LoadShapefile(context.Background(), w, path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, w.got, 2)
}
