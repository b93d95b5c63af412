package commune

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/fetcher"
)

// CodeField is the INSEE code attribute of IGN ADMIN EXPRESS commune layers.
const CodeField = "INSEE_COM"

// ReadShapefileContours reads commune contours from a shapefile, or from the
// first .shp found in a .zip archive. The result maps INSEE code to EWKB.
func ReadShapefileContours(path string) (map[string][]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dir, err := os.MkdirTemp("", "erpsync-shp-*")
		if err != nil {
			return nil, eris.Wrap(err, "commune: temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		if _, err := fetcher.ExtractZIP(path, dir); err != nil {
			return nil, err
		}
		path, err = findShapefile(dir)
		if err != nil {
			return nil, err
		}
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "commune: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), CodeField) {
			codeIdx = i
			break
		}
	}
	if codeIdx < 0 {
		return nil, eris.Errorf("commune: shapefile %s has no %s field", path, CodeField)
	}

	out := make(map[string][]byte)
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		code := strings.TrimSpace(strings.TrimRight(reader.Attribute(codeIdx), "\x00"))
		if code == "" {
			skipped++
			continue
		}
		contour, err := ContourFromShape(shape)
		if err != nil || contour == nil {
			skipped++
			continue
		}
		out[code] = contour
	}

	if skipped > 0 {
		zap.L().Debug("commune: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return out, nil
}

func findShapefile(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".shp") {
			found = p
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "commune: walk archive")
	}
	if found == "" {
		return "", eris.New("commune: no .shp in archive")
	}
	return found, nil
}

// ContourWriter stores contours in bulk.
type ContourWriter interface {
	SetContours(ctx context.Context, contours map[string][]byte) (int64, error)
}

// LoadShapefile reads a shapefile and stores every contour it carries.
func LoadShapefile(ctx context.Context, w ContourWriter, path string) (int64, error) {
	contours, err := ReadShapefileContours(path)
	if err != nil {
		return 0, err
	}
	n, err := w.SetContours(ctx, contours)
	if err != nil {
		return 0, err
	}
	zap.L().Info("shapefile contours loaded",
		zap.String("path", path),
		zap.Int("read", len(contours)),
		zap.Int64("updated", n),
	)
	return n, nil
}
