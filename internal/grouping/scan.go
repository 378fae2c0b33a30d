package grouping

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pl-listing/lister/internal/models"
)

// ScanDir walks dir in lexical order and reads every regular file whose
// extension is allowed. Names are base names, which is what ExtractID expects.
// Oversized files are returned as well; the normalizer reports them.
func ScanDir(dir string) ([]models.RawFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []models.RawFile
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || !IsImageFile(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, models.RawFile{Name: d.Name(), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
