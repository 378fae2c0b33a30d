package grouping

import (
	"errors"
	"log/slog"

	"github.com/pl-listing/lister/internal/models"
)

// DefaultMaxFiles caps how many image files one batch accepts.
const DefaultMaxFiles = 2000

// ErrNoImages is returned when no file survives the extension filter.
var ErrNoImages = errors.New("no images found")

// AllowedExtensions lists the image extensions accepted into a batch.
var AllowedExtensions = []string{"jpg", "jpeg", "png", "webp"}

// IsImageFile reports whether name carries an allowed image extension.
func IsImageFile(name string) bool {
	ext := Ext(name)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Result is the ordered partition of a file set into product groups.
type Result struct {
	// Groups are in order of first appearance of each product identifier.
	Groups []models.ImageGroup

	Accepted  int // image files placed into a group
	NotImages int // files excluded by the extension allow-list
	OverLimit int // image files excluded by the MaxFiles ceiling
	index     map[models.ProductID]int
}

// Dropped is the number of image files the caller should be told were excluded.
func (r *Result) Dropped() int {
	return r.OverLimit
}

// Group returns the group for id.
func (r *Result) Group(id models.ProductID) (models.ImageGroup, bool) {
	i, ok := r.index[id]
	if !ok {
		return models.ImageGroup{}, false
	}
	return r.Groups[i], true
}

// Grouper partitions files into per-product image groups.
type Grouper struct {
	MaxFiles int
}

// NewGrouper returns a Grouper; maxFiles <= 0 selects DefaultMaxFiles.
func NewGrouper(maxFiles int) *Grouper {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &Grouper{MaxFiles: maxFiles}
}

// Group filters files to allowed image extensions and appends each to the
// group of its extracted identifier, preserving input order. Files beyond
// MaxFiles are excluded and counted in Result.OverLimit. ErrNoImages is
// returned together with the (empty) result when nothing was accepted.
func (g *Grouper) Group(files []models.RawFile) (*Result, error) {
	res := &Result{index: make(map[models.ProductID]int)}

	for _, f := range files {
		if !IsImageFile(f.Name) {
			res.NotImages++
			continue
		}
		if res.Accepted >= g.MaxFiles {
			res.OverLimit++
			continue
		}
		res.Accepted++

		id := ExtractID(f.Name)
		i, ok := res.index[id]
		if !ok {
			i = len(res.Groups)
			res.index[id] = i
			res.Groups = append(res.Groups, models.ImageGroup{ProductID: id})
		}
		res.Groups[i].Images = append(res.Groups[i].Images, f)
	}

	if res.OverLimit > 0 {
		slog.Warn("File limit reached, excess images dropped", "limit", g.MaxFiles, "dropped", res.OverLimit)
	}
	if len(res.Groups) == 0 {
		return res, ErrNoImages
	}

	slog.Debug("Grouped images", "groups", len(res.Groups), "accepted", res.Accepted, "not_images", res.NotImages)
	return res, nil
}
