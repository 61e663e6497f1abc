package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"listforge/internal/engine/domain"
	"listforge/pkg/logger"
)

// LocalMockupGenerator is the reference mockup collaborator: it places a copy
// of the finished design into the mockup scratch directory. The original
// system falls back to exactly this when no mockup templates are installed, so
// the pipeline stays runnable end to end without a rendering backend.
type LocalMockupGenerator struct {
	OutputDir string
	logger    *logger.Logger
}

func NewLocalMockupGenerator(outputDir string) *LocalMockupGenerator {
	return &LocalMockupGenerator{
		OutputDir: outputDir,
		logger:    logger.WithField("component", "mockup-generator"),
	}
}

func (g *LocalMockupGenerator) Generate(_ context.Context, d domain.DesignDescriptor) ([]string, error) {
	if err := os.MkdirAll(g.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mockup directory: %w", err)
	}

	ext := filepath.Ext(d.SourcePath)
	dest := filepath.Join(g.OutputDir, fmt.Sprintf("%s_mockup_1%s", d.Slug, ext))
	if err := copyFile(d.SourcePath, dest); err != nil {
		return nil, fmt.Errorf("failed to stage mockup for %s: %w", d.Slug, err)
	}

	g.logger.Debug("mockup staged", "slug", d.Slug, "path", dest)
	return []string{dest}, nil
}

// SlugSEO derives listing text deterministically from the design slug. It
// honors the marketplace's title and tag limits.
type SlugSEO struct{}

func (SlugSEO) Optimize(_ context.Context, d domain.DesignDescriptor) (SEOContent, error) {
	words := slugWords(d.Slug)
	if len(words) == 0 {
		return SEOContent{}, fmt.Errorf("design slug %q yields no usable words", d.Slug)
	}

	title := strings.Join(titleCase(words), " ") + " | Digital Download Art Print"
	if len(title) > MaxTitleLength {
		title = title[:MaxTitleLength]
	}

	tags := append([]string{}, words...)
	tags = append(tags, "digital download", "printable wall art", "art print")
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}

	description := fmt.Sprintf(
		"Instant digital download of %q. High-resolution %dx%d file, ready to print at home or through a print shop. No physical item will be shipped.",
		strings.Join(words, " "), d.Width, d.Height)

	return SEOContent{Title: title, Description: description, Tags: tags}, nil
}

// LocalPDFCustomizer produces the per-design delivery document by copying the
// reference template into the PDF scratch directory under the design's slug.
type LocalPDFCustomizer struct {
	TemplatePath string
	OutputDir    string
	logger       *logger.Logger
}

func NewLocalPDFCustomizer(templatePath, outputDir string) *LocalPDFCustomizer {
	return &LocalPDFCustomizer{
		TemplatePath: templatePath,
		OutputDir:    outputDir,
		logger:       logger.WithField("component", "pdf-customizer"),
	}
}

func (c *LocalPDFCustomizer) Customize(_ context.Context, d domain.DesignDescriptor) (string, error) {
	if _, err := os.Stat(c.TemplatePath); err != nil {
		return "", fmt.Errorf("delivery template %s not readable: %w", c.TemplatePath, err)
	}
	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create pdf directory: %w", err)
	}

	dest := filepath.Join(c.OutputDir, fmt.Sprintf("%s_delivery.pdf", d.Slug))
	if err := copyFile(c.TemplatePath, dest); err != nil {
		return "", fmt.Errorf("failed to customize delivery document for %s: %w", d.Slug, err)
	}

	c.logger.Debug("delivery document customized", "slug", d.Slug, "path", dest)
	return dest, nil
}

func slugWords(slug string) []string {
	raw := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

func titleCase(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return out
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
