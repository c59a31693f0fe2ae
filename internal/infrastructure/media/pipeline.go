// Package media provides the blog image processing pipeline: validation,
// metadata extraction, blur placeholder generation, optimization, and
// thumbnail plus responsive variant rendering.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	optimizedMaxWidth  = 1920
	optimizedMaxHeight = 1080
	optimizedQuality   = 80
	placeholderWidth   = 20
)

var (
	thumbnailWidths  = []int{150, 300, 600}
	responsiveWidths = []int{640, 768, 1024, 1280, 1536}
)

// Metadata describes the decoded source image.
type Metadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int    `json:"size"`
}

// Variant is one rendered output file.
type Variant struct {
	Width  int    `json:"width"`
	Format string `json:"format"`
	URL    string `json:"url"`
}

// StageOptions selects which rendering stages run for a batch. Validation,
// metadata extraction, and decode always run; the output stages can be
// toggled per request.
type StageOptions struct {
	Placeholder bool `json:"placeholder"`
	Optimize    bool `json:"optimize"`
	Thumbnails  bool `json:"thumbnails"`
	Responsive  bool `json:"responsive"`
}

// DefaultStageOptions renders the placeholder, the optimized main image, and
// the responsive set. Thumbnails are opt-in.
func DefaultStageOptions() StageOptions {
	return StageOptions{
		Placeholder: true,
		Optimize:    true,
		Thumbnails:  false,
		Responsive:  true,
	}
}

// ProcessedImage is the complete pipeline output for one upload.
type ProcessedImage struct {
	Metadata    Metadata  `json:"metadata"`
	Placeholder string    `json:"placeholder"`
	Optimized   string    `json:"optimized"`
	Thumbnails  []Variant `json:"thumbnails"`
	Responsive  []Variant `json:"responsive"`
}

// Pipeline renders image variants under a base directory. Files are written
// as <basePath>/images/<baseName>_<width>px.<ext>, served at /media/images/.
type Pipeline struct {
	basePath    string
	maxFileSize int64
}

func NewPipeline(basePath string, maxFileSize int64) *Pipeline {
	return &Pipeline{basePath: basePath, maxFileSize: maxFileSize}
}

// Validate rejects oversized uploads and unsupported formats before any
// decode work happens.
func (p *Pipeline) Validate(up Upload) error {
	if len(up.Data) == 0 {
		return fmt.Errorf("%s: empty file", up.Name)
	}
	if int64(len(up.Data)) > p.maxFileSize {
		return fmt.Errorf("%s: file exceeds %d byte limit", up.Name, p.maxFileSize)
	}
	contentType := http.DetectContentType(up.Data)
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
		return nil
	}
	return fmt.Errorf("%s: unsupported format %s", up.Name, contentType)
}

// ExtractMetadata decodes the image header without rendering pixels.
func (p *Pipeline) ExtractMetadata(up Upload) (Metadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(up.Data))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read image metadata: %w", err)
	}
	return Metadata{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Size:   len(up.Data),
	}, nil
}

// Decode renders the full image for the later stages.
func (p *Pipeline) Decode(up Upload) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(up.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Placeholder renders a tiny blurred preview as a jpeg data URI, suitable
// for inlining while the real image loads.
func (p *Pipeline) Placeholder(img image.Image) (string, error) {
	tiny := imaging.Resize(img, placeholderWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, tiny, &jpeg.Options{Quality: 40}); err != nil {
		return "", fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Optimize writes the main webp rendition, downscaled to fit 1920x1080.
func (p *Pipeline) Optimize(img image.Image, baseName string) (string, error) {
	fitted := imaging.Fit(img, optimizedMaxWidth, optimizedMaxHeight, imaging.Lanczos)

	targetDir := filepath.Join(p.basePath, "images")
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	filename := baseName + ".webp"
	fullPath := filepath.Join(targetDir, filename)
	if err := webp.Save(fullPath, fitted, &webp.Options{Quality: optimizedQuality}); err != nil {
		return "", fmt.Errorf("failed to save optimized image: %w", err)
	}
	return mediaURL("images", filename), nil
}

// Thumbnails renders the fixed small widths as webp.
func (p *Pipeline) Thumbnails(img image.Image, baseName string) ([]Variant, error) {
	targetDir := filepath.Join(p.basePath, "images", "thumbs")
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create thumbs directory: %w", err)
	}

	variants := make([]Variant, 0, len(thumbnailWidths))
	for _, width := range thumbnailWidths {
		resized := imaging.Resize(img, width, 0, imaging.Lanczos)
		filename := fmt.Sprintf("%s_%dpx.webp", baseName, width)
		if err := webp.Save(filepath.Join(targetDir, filename), resized, &webp.Options{Quality: optimizedQuality}); err != nil {
			return nil, fmt.Errorf("failed to save %dpx thumbnail: %w", width, err)
		}
		variants = append(variants, Variant{Width: width, Format: "webp", URL: mediaURL("images/thumbs", filename)})
	}
	return variants, nil
}

// Responsive renders the breakpoint widths in webp with a jpg fallback for
// each. Widths larger than the source are skipped rather than upscaled.
func (p *Pipeline) Responsive(img image.Image, baseName string) ([]Variant, error) {
	targetDir := filepath.Join(p.basePath, "images", "responsive")
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create responsive directory: %w", err)
	}

	sourceWidth := img.Bounds().Dx()
	variants := make([]Variant, 0, len(responsiveWidths)*2)
	for _, width := range responsiveWidths {
		if width > sourceWidth {
			continue
		}
		resized := imaging.Resize(img, width, 0, imaging.Lanczos)

		webpName := fmt.Sprintf("%s_%dpx.webp", baseName, width)
		if err := webp.Save(filepath.Join(targetDir, webpName), resized, &webp.Options{Quality: optimizedQuality}); err != nil {
			return nil, fmt.Errorf("failed to save %dpx webp variant: %w", width, err)
		}
		variants = append(variants, Variant{Width: width, Format: "webp", URL: mediaURL("images/responsive", webpName)})

		jpgName := fmt.Sprintf("%s_%dpx.jpg", baseName, width)
		if err := imaging.Save(resized, filepath.Join(targetDir, jpgName), imaging.JPEGQuality(optimizedQuality)); err != nil {
			return nil, fmt.Errorf("failed to save %dpx jpg variant: %w", width, err)
		}
		variants = append(variants, Variant{Width: width, Format: "jpg", URL: mediaURL("images/responsive", jpgName)})
	}
	return variants, nil
}

// BaseName derives a filesystem-safe stem from an upload name and a unique
// job suffix.
func BaseName(name, suffix string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, stem)
	stem = strings.Trim(stem, "-")
	if stem == "" {
		stem = "image"
	}
	return stem + "-" + suffix
}

func mediaURL(subdir, filename string) string {
	return "/" + strings.ReplaceAll(filepath.Join("media", subdir, filename), "\\", "/")
}
