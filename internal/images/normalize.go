package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/pl-listing/lister/internal/models"
)

const (
	DefaultMaxFileBytes        = 10 << 20
	DefaultMaxPixels           = 40_000_000
	DefaultCompactionThreshold = 1 << 20
	DefaultMaxWidth            = 1024
	DefaultQuality             = 85
	DefaultWorkers             = 4
)

var (
	// ErrDecode marks an image whose bytes could not be decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrSizeLimit marks an image over the byte or pixel ceiling.
	ErrSizeLimit = errors.New("image exceeds size limit")
)

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

// Normalizer turns raw uploads into images the classification service accepts.
type Normalizer struct {
	// MaxFileBytes is checked before decoding; larger files are dropped.
	MaxFileBytes int
	// MaxPixels bounds width*height as declared in the image header, which
	// is read before the pixel data is decoded.
	MaxPixels int
	// CompactionThreshold is the base64 size above which an image is
	// downscaled and re-encoded as JPEG.
	CompactionThreshold int
	MaxWidth            int
	Quality             int
	// Workers bounds per-image concurrency inside one group.
	Workers int
}

// NewNormalizer returns a Normalizer with the default limits.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		MaxFileBytes:        DefaultMaxFileBytes,
		MaxPixels:           DefaultMaxPixels,
		CompactionThreshold: DefaultCompactionThreshold,
		MaxWidth:            DefaultMaxWidth,
		Quality:             DefaultQuality,
		Workers:             DefaultWorkers,
	}
}

// Dropped describes an image that did not survive normalization.
type Dropped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Normalize decodes one image and compacts it when its transport encoding is
// over the compaction threshold. Compaction is best effort: when the
// re-encoded image is not smaller, the original bytes are kept.
func (n *Normalizer) Normalize(raw models.RawFile) (models.NormalizedImage, error) {
	if n.MaxFileBytes > 0 && len(raw.Data) > n.MaxFileBytes {
		return models.NormalizedImage{}, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrSizeLimit, raw.Name, len(raw.Data), n.MaxFileBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw.Data))
	if err != nil {
		return models.NormalizedImage{}, fmt.Errorf("%w: %s: %v", ErrDecode, raw.Name, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); n.MaxPixels > 0 && pixels > int64(n.MaxPixels) {
		return models.NormalizedImage{}, fmt.Errorf("%w: %s is %dx%d (limit %d pixels)", ErrSizeLimit, raw.Name, cfg.Width, cfg.Height, n.MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return models.NormalizedImage{}, fmt.Errorf("%w: %s: %v", ErrDecode, raw.Name, err)
	}
	mimeType, ok := mimeTypes[format]
	if !ok {
		return models.NormalizedImage{}, fmt.Errorf("%w: %s: unsupported format %q", ErrDecode, raw.Name, format)
	}

	bounds := img.Bounds()
	out := models.NormalizedImage{
		SourceName: raw.Name,
		MIMEType:   mimeType,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Data:       raw.Data,
	}
	if n.CompactionThreshold <= 0 || out.EncodedSize() <= n.CompactionThreshold {
		return out, nil
	}

	compacted, err := n.compact(img)
	if err != nil {
		slog.Warn("Image compaction failed, using original", "file", raw.Name, "error", err)
		return out, nil
	}
	if len(compacted.Data) >= len(out.Data) {
		slog.Debug("Compaction did not shrink image", "file", raw.Name, "original_bytes", len(out.Data), "compacted_bytes", len(compacted.Data))
		return out, nil
	}

	compacted.SourceName = raw.Name
	if compacted.EncodedSize() > n.CompactionThreshold {
		slog.Debug("Compacted image still over threshold", "file", raw.Name, "encoded_bytes", compacted.EncodedSize(), "threshold", n.CompactionThreshold)
	}
	return compacted, nil
}

func (n *Normalizer) compact(img image.Image) (models.NormalizedImage, error) {
	if n.MaxWidth > 0 && img.Bounds().Dx() > n.MaxWidth {
		// height 0 keeps the aspect ratio
		img = resize.Resize(uint(n.MaxWidth), 0, img, resize.Lanczos3)
	}

	quality := n.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
		return models.NormalizedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}

	b := img.Bounds()
	return models.NormalizedImage{
		MIMEType:  "image/jpeg",
		Width:     b.Dx(),
		Height:    b.Dy(),
		Compacted: true,
		Data:      buf.Bytes(),
	}, nil
}

// flatten draws img over white so transparent regions do not turn black in JPEG.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); !ok || o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// NormalizeGroup normalizes every image of a group. Images are processed
// concurrently but the returned slice keeps the group's order. Images that
// fail are reported in the second return value and never abort the group.
func (n *Normalizer) NormalizeGroup(ctx context.Context, group models.ImageGroup) ([]models.NormalizedImage, []Dropped) {
	type result struct {
		img models.NormalizedImage
		err error
	}
	results := make([]result, len(group.Images))

	workers := n.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, raw := range group.Images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			results[i].img, results[i].err = n.Normalize(raw)
			return nil
		})
	}
	_ = g.Wait()

	var (
		normalized []models.NormalizedImage
		dropped    []Dropped
	)
	for i, r := range results {
		if r.err != nil {
			name := group.Images[i].Name
			slog.Warn("Dropping image", "product_id", group.ProductID, "file", name, "error", r.err)
			dropped = append(dropped, Dropped{Name: name, Reason: r.err.Error(), Err: r.err})
			continue
		}
		normalized = append(normalized, r.img)
	}
	return normalized, dropped
}
