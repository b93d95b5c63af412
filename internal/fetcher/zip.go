package fetcher

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive to the destination directory.
// Returns the list of extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}

	return extracted, nil
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	if _, err := writeFile(destPath, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	return destPath, nil
}

// emitZIP decodes every archive entry whose name contains filter, in archive
// order. Line numbers continue across entries.
func emitZIP(ctx context.Context, zipPath string, spec Spec, out chan<- RawRow) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	line := 0
	matched := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.Contains(f.Name, spec.Entries) {
			continue
		}
		matched++

		line, err = emitZIPEntry(ctx, f, spec, line, out)
		if err != nil {
			return eris.Wrapf(err, "zip: entry %s", f.Name)
		}
	}
	if matched == 0 {
		return eris.Errorf("zip: no entry matching %q", spec.Entries)
	}
	return nil
}

func emitZIPEntry(ctx context.Context, f *zip.File, spec Spec, line int, out chan<- RawRow) (int, error) {
	rc, err := f.Open()
	if err != nil {
		return line, eris.Wrap(err, "open entry")
	}
	defer rc.Close() //nolint:errcheck

	format := spec.EntryFormat
	if format == "" {
		format = formatFromName(f.Name)
	}
	switch format {
	case FormatJSON:
		return emitJSON(ctx, rc, spec.Path, line, out)
	case FormatCSV:
		return emitCSV(ctx, rc, spec.csvOptions(), line, out)
	default:
		return line, eris.Errorf("unsupported entry format %q", format)
	}
}

func formatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".geojson":
		return FormatJSON
	default:
		return FormatCSV
	}
}
