package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"listforge/internal/engine/domain"
	"listforge/pkg/logger"
)

// dimensionPattern matches files named <slug>__w=<width>__h=<height>.<ext>.
var dimensionPattern = regexp.MustCompile(`(?i)^(.+?)__w=(\d+)__h=(\d+)\.(png|jpg|jpeg)$`)

const (
	// defaultDimension is assumed for descriptive filenames that carry no
	// explicit pixel dimensions.
	defaultDimension = 2000
)

// Discoverer scans a directory for finished design files and turns them into
// descriptors. Deterministic given an unchanged directory: results are ordered
// lexicographically by filename.
type Discoverer struct {
	root   string
	logger *logger.Logger
}

func New(root string) *Discoverer {
	return &Discoverer{
		root:   root,
		logger: logger.WithField("component", "discoverer"),
	}
}

// Discover returns one descriptor per design image in the root directory.
// A sibling file with the same stem and a .svg extension becomes the design's
// vector companion.
func (d *Discoverer) Discover() ([]domain.DesignDescriptor, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", d.root, domain.ErrDiscoveryRootMissing)
		}
		return nil, fmt.Errorf("failed to stat discovery root %s: %w", d.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", d.root, domain.ErrDiscoveryRootMissing)
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery root %s: %w", d.root, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var descriptors []domain.DesignDescriptor
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			continue
		}

		desc := d.describe(name)
		if vector := d.findVector(name); vector != "" {
			desc.VectorPath = vector
		}
		descriptors = append(descriptors, desc)
		d.logger.Debug("discovered design file",
			"slug", desc.Slug, "width", desc.Width, "height", desc.Height, "vector", desc.VectorPath != "")
	}

	d.logger.Info("design discovery complete", "root", d.root, "count", len(descriptors))
	return descriptors, nil
}

// describe derives a descriptor from one filename. Files matching the
// dimension pattern carry explicit pixel sizes; descriptive filenames fall
// back to a slugified stem and default dimensions.
func (d *Discoverer) describe(name string) domain.DesignDescriptor {
	path := filepath.Join(d.root, name)

	if match := dimensionPattern.FindStringSubmatch(name); match != nil {
		width, _ := strconv.Atoi(match[2])
		height, _ := strconv.Atoi(match[3])
		return domain.DesignDescriptor{
			Slug:       match[1],
			Filename:   name,
			SourcePath: path,
			Width:      width,
			Height:     height,
		}
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	slug := strings.NewReplacer(" ", "_", "-", "_").Replace(stem)
	return domain.DesignDescriptor{
		Slug:       slug,
		Filename:   name,
		SourcePath: path,
		Width:      defaultDimension,
		Height:     defaultDimension,
	}
}

// findVector returns the path of a same-stem .svg companion, or "".
func (d *Discoverer) findVector(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	candidate := filepath.Join(d.root, stem+".svg")
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}
