package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listforge/internal/engine/cache"
	"listforge/internal/engine/domain"
	"listforge/internal/engine/marketplace"
	"listforge/internal/engine/stages"
	"listforge/pkg/config"
)

type fakeDiscoverer struct {
	designs []domain.DesignDescriptor
	err     error
}

func (f *fakeDiscoverer) Discover() ([]domain.DesignDescriptor, error) {
	return f.designs, f.err
}

type fakeMockups struct {
	generate func(d domain.DesignDescriptor) ([]string, error)
}

func (f *fakeMockups) Generate(_ context.Context, d domain.DesignDescriptor) ([]string, error) {
	return f.generate(d)
}

type fakeSEO struct{}

func (fakeSEO) Optimize(_ context.Context, d domain.DesignDescriptor) (stages.SEOContent, error) {
	return stages.SEOContent{Title: d.Slug, Tags: []string{"art"}}, nil
}

type fakePDF struct {
	customize func(d domain.DesignDescriptor) (string, error)
}

func (f *fakePDF) Customize(_ context.Context, d domain.DesignDescriptor) (string, error) {
	return f.customize(d)
}

type fakeUploader struct {
	upload func(path string) (string, error)
}

func (f *fakeUploader) Upload(_ context.Context, path string) (string, error) {
	if f.upload != nil {
		return f.upload(path)
	}
	return "file://" + path, nil
}

type fakeLister struct {
	calls  int
	create func(d domain.DesignDescriptor) (string, error)
}

func (f *fakeLister) CreateDraftListing(_ context.Context, d domain.DesignDescriptor, _ stages.SEOContent, _ []string, _ string) (string, error) {
	f.calls++
	if f.create != nil {
		return f.create(d)
	}
	return "listing_" + d.Slug, nil
}

func descriptors(slugs ...string) []domain.DesignDescriptor {
	out := make([]domain.DesignDescriptor, 0, len(slugs))
	for _, slug := range slugs {
		out = append(out, domain.DesignDescriptor{
			Slug:     slug,
			Filename: slug + ".png",
			Width:    2000,
			Height:   2000,
		})
	}
	return out
}

// writingMockups writes one real mockup file per design into dir so the cache
// manager has something to track and prune.
func writingMockups(t *testing.T, dir string) *fakeMockups {
	t.Helper()
	return &fakeMockups{generate: func(d domain.DesignDescriptor) ([]string, error) {
		path := filepath.Join(dir, d.Slug+"_mockup_1.png")
		if err := os.WriteFile(path, []byte("mockup"), 0644); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}}
}

func writingPDF(t *testing.T, dir string) *fakePDF {
	t.Helper()
	return &fakePDF{customize: func(d domain.DesignDescriptor) (string, error) {
		path := filepath.Join(dir, d.Slug+"_delivery.pdf")
		if err := os.WriteFile(path, []byte("pdf"), 0644); err != nil {
			return "", err
		}
		return path, nil
	}}
}

func testConfigs(mode string) (config.PipelineConfig, config.MarketplaceConfig) {
	pipe := config.PipelineConfig{Mode: mode, BatchSize: 10}
	mkt := config.MarketplaceConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
	return pipe, mkt
}

func newTestCache(t *testing.T, dirs ...string) *cache.Manager {
	t.Helper()
	m, err := cache.NewManager(cache.Config{
		Dirs:             dirs,
		RetentionCount:   5,
		MaxCacheSizeMB:   100,
		CleanupOnSuccess: true,
	})
	require.NoError(t, err)
	return m
}

func TestOrchestrator_BatchHaltsOnFirstFailure(t *testing.T) {
	mockupDir := t.TempDir()
	pdfDir := t.TempDir()
	mgr := newTestCache(t, mockupDir, pdfDir)

	mockups := writingMockups(t, mockupDir)
	failing := &fakeMockups{generate: func(d domain.DesignDescriptor) ([]string, error) {
		if d.Slug == "d3" {
			return nil, errors.New("render engine crashed")
		}
		return mockups.generate(d)
	}}

	lister := &fakeLister{}
	pipe, mkt := testConfigs("batch")
	o, err := New(pipe, mkt, Deps{
		Cache:      mgr,
		Discoverer: &fakeDiscoverer{designs: descriptors("d1", "d2", "d3", "d4", "d5")},
		Mockups:    failing,
		SEO:        fakeSEO{},
		PDF:        writingPDF(t, pdfDir),
		Uploader:   &fakeUploader{},
		Lister:     lister,
	})
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Success)
	assert.Equal(t, 5, summary.TotalDiscovered)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, lister.calls)

	failure, ok := summary.FirstFailure()
	require.True(t, ok)
	assert.Equal(t, "d3", failure.Slug)
	assert.Equal(t, stages.StageMockups, failure.Stage)

	// successful designs keep their artifacts, the failed one's are purged
	assert.FileExists(t, filepath.Join(mockupDir, "d1_mockup_1.png"))
	assert.FileExists(t, filepath.Join(mockupDir, "d2_mockup_1.png"))
	assert.FileExists(t, filepath.Join(pdfDir, "d2_delivery.pdf"))
	assert.NoFileExists(t, filepath.Join(mockupDir, "d3_mockup_1.png"))
}

func TestOrchestrator_ValidateModeProcessesOneDesign(t *testing.T) {
	mockupDir := t.TempDir()
	pdfDir := t.TempDir()
	mgr := newTestCache(t, mockupDir, pdfDir)

	slugs := make([]string, 10)
	for i := range slugs {
		slugs[i] = fmt.Sprintf("d%02d", i+1)
	}

	pipe, mkt := testConfigs("validate")
	o, err := New(pipe, mkt, Deps{
		Cache:      mgr,
		Discoverer: &fakeDiscoverer{designs: descriptors(slugs...)},
		Mockups:    writingMockups(t, mockupDir),
		SEO:        fakeSEO{},
		PDF:        writingPDF(t, pdfDir),
		Uploader:   &fakeUploader{},
	})
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 10, summary.TotalDiscovered)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, "d01", summary.Outcomes[0].Slug)
	assert.Equal(t, validateListingID, summary.Outcomes[0].ListingID)
}

func TestOrchestrator_EmptyDiscoveryIsASuccessfulRun(t *testing.T) {
	mgr := newTestCache(t, t.TempDir())

	pipe, mkt := testConfigs("batch")
	o, err := New(pipe, mkt, Deps{
		Cache:      mgr,
		Discoverer: &fakeDiscoverer{},
		Mockups:    &fakeMockups{},
		SEO:        fakeSEO{},
		PDF:        &fakePDF{},
		Uploader:   &fakeUploader{},
		Lister:     &fakeLister{},
	})
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Zero(t, summary.Processed)
	assert.Empty(t, summary.Outcomes)
}

func TestOrchestrator_MissingDiscoveryRootIsAConfigError(t *testing.T) {
	mgr := newTestCache(t, t.TempDir())

	pipe, mkt := testConfigs("batch")
	o, err := New(pipe, mkt, Deps{
		Cache: mgr,
		Discoverer: &fakeDiscoverer{
			err: fmt.Errorf("input: %w", domain.ErrDiscoveryRootMissing),
		},
		Mockups:  &fakeMockups{},
		SEO:      fakeSEO{},
		PDF:      &fakePDF{},
		Uploader: &fakeUploader{},
		Lister:   &fakeLister{},
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestOrchestrator_RetryExhaustionBecomesStageFailure(t *testing.T) {
	mockupDir := t.TempDir()
	pdfDir := t.TempDir()
	mgr := newTestCache(t, mockupDir, pdfDir)

	attempts := 0
	lister := &fakeLister{create: func(domain.DesignDescriptor) (string, error) {
		attempts++
		return "", &marketplace.APIError{StatusCode: 503, Body: "unavailable"}
	}}

	pipe, mkt := testConfigs("batch")
	o, err := New(pipe, mkt, Deps{
		Cache:      mgr,
		Discoverer: &fakeDiscoverer{designs: descriptors("d1")},
		Mockups:    writingMockups(t, mockupDir),
		SEO:        fakeSEO{},
		PDF:        writingPDF(t, pdfDir),
		Uploader:   &fakeUploader{},
		Lister:     lister,
	})
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Success)
	assert.Equal(t, mkt.MaxAttempts, attempts)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, domain.OutcomeFailed, summary.Outcomes[0].Status)
	assert.Equal(t, stages.StageListing, summary.Outcomes[0].Stage)
	assert.Contains(t, summary.Outcomes[0].Err, "retries exhausted")
}

func TestOrchestrator_NonRetryableErrorFailsImmediately(t *testing.T) {
	mockupDir := t.TempDir()
	pdfDir := t.TempDir()
	mgr := newTestCache(t, mockupDir, pdfDir)

	attempts := 0
	uploader := &fakeUploader{upload: func(string) (string, error) {
		attempts++
		return "", &marketplace.APIError{StatusCode: 400, Body: "bad request"}
	}}

	pipe, mkt := testConfigs("batch")
	o, err := New(pipe, mkt, Deps{
		Cache:      mgr,
		Discoverer: &fakeDiscoverer{designs: descriptors("d1")},
		Mockups:    writingMockups(t, mockupDir),
		SEO:        fakeSEO{},
		PDF:        writingPDF(t, pdfDir),
		Uploader:   uploader,
		Lister:     &fakeLister{},
	})
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, attempts)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, stages.StageUpload, summary.Outcomes[0].Stage)
}

func TestOrchestrator_CancellationBetweenDesigns(t *testing.T) {
	mockupDir := t.TempDir()
	pdfDir := t.TempDir()
	mgr := newTestCache(t, mockupDir, pdfDir)

	ctx, cancel := context.WithCancel(context.Background())
	inner := writingMockups(t, mockupDir)
	mockups := &fakeMockups{generate: func(d domain.DesignDescriptor) ([]string, error) {
		cancel() // takes effect before the next design, not mid-design
		return inner.generate(d)
	}}

	pipe, mkt := testConfigs("batch")
	o, err := New(pipe, mkt, Deps{
		Cache:      mgr,
		Discoverer: &fakeDiscoverer{designs: descriptors("d1", "d2", "d3")},
		Mockups:    mockups,
		SEO:        fakeSEO{},
		PDF:        writingPDF(t, pdfDir),
		Uploader:   &fakeUploader{},
		Lister:     &fakeLister{},
	})
	require.NoError(t, err)

	summary, err := o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, summary.Success)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestNew_Validation(t *testing.T) {
	mgr := newTestCache(t, t.TempDir())
	deps := Deps{
		Cache:      mgr,
		Discoverer: &fakeDiscoverer{},
		Mockups:    &fakeMockups{},
		SEO:        fakeSEO{},
		PDF:        &fakePDF{},
		Uploader:   &fakeUploader{},
		Lister:     &fakeLister{},
	}

	var cfgErr *domain.ConfigError

	pipe, mkt := testConfigs("stream")
	_, err := New(pipe, mkt, deps)
	require.ErrorAs(t, err, &cfgErr)

	pipe, mkt = testConfigs("batch")
	incomplete := deps
	incomplete.SEO = nil
	_, err = New(pipe, mkt, incomplete)
	require.ErrorAs(t, err, &cfgErr)

	noLister := deps
	noLister.Lister = nil
	_, err = New(pipe, mkt, noLister)
	require.ErrorAs(t, err, &cfgErr)

	pipe, mkt = testConfigs("validate")
	_, err = New(pipe, mkt, noLister)
	require.NoError(t, err)
}
