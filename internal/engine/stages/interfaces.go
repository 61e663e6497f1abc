package stages

import (
	"context"

	"listforge/internal/engine/domain"
)

// Stage names recorded in outcomes and failure messages.
const (
	StageCache   = "cache"
	StageMockups = "mockups"
	StagePDF     = "pdf"
	StageSEO     = "seo"
	StageUpload  = "upload"
	StageListing = "listing"
)

// Marketplace listing limits, from the marketplace's listing schema.
const (
	MaxTitleLength = 140
	MaxTags        = 13
)

// SEOContent is the marketing text produced for one design.
type SEOContent struct {
	Title       string
	Description string
	Tags        []string
}

// Discoverer scans the input directory and returns design descriptors in a
// deterministic order.
type Discoverer interface {
	Discover() ([]domain.DesignDescriptor, error)
}

// MockupGenerator produces product mockup images for a design and returns the
// paths it wrote.
type MockupGenerator interface {
	Generate(ctx context.Context, d domain.DesignDescriptor) ([]string, error)
}

// SEOOptimizer produces listing title, description, and tags for a design.
type SEOOptimizer interface {
	Optimize(ctx context.Context, d domain.DesignDescriptor) (SEOContent, error)
}

// PDFCustomizer produces the customized delivery document for a design and
// returns the path it wrote.
type PDFCustomizer interface {
	Customize(ctx context.Context, d domain.DesignDescriptor) (string, error)
}

// Uploader pushes one generated artifact to the storage provider and returns
// its remote URL.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Lister creates a draft marketplace listing from the design's artifacts and
// returns the listing ID.
type Lister interface {
	CreateDraftListing(ctx context.Context, d domain.DesignDescriptor, seo SEOContent, mockups []string, pdf string) (string, error)
}
