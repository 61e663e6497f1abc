package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"listforge/internal/engine/domain"
	"listforge/internal/engine/stages"
)

// digitalDownloadPrice is the fixed shop price for digital download listings.
const digitalDownloadPrice = 13.32

// listingPayload is the subset of the marketplace listing schema the pipeline
// needs to create a draft.
type listingPayload struct {
	Quantity      int      `json:"quantity"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	WhoMade       string   `json:"who_made"`
	WhenMade      string   `json:"when_made"`
	TaxonomyID    int      `json:"taxonomy_id"`
	Tags          []string `json:"tags"`
	Type          string   `json:"type"`
	State         string   `json:"state"`
	ShouldRenew   bool     `json:"should_auto_renew"`
	IsSupply      bool     `json:"is_supply"`
	StaticImageID []string `json:"referenced_image_ids,omitempty"`
}

// CreateDraftListing creates a draft listing for the design, then attaches the
// mockup images and the delivery document. Satisfies the Lister contract.
func (c *Client) CreateDraftListing(ctx context.Context, d domain.DesignDescriptor, seo stages.SEOContent, mockups []string, pdf string) (string, error) {
	title := seo.Title
	if len(title) > stages.MaxTitleLength {
		title = title[:stages.MaxTitleLength]
	}
	tags := seo.Tags
	if len(tags) > stages.MaxTags {
		tags = tags[:stages.MaxTags]
	}

	payload := listingPayload{
		Quantity:      999,
		Title:         title,
		Description:   seo.Description,
		Price:         digitalDownloadPrice,
		WhoMade:       "i_did",
		WhenMade:      "2020_2025",
		TaxonomyID:    2078, // digital prints
		Tags:          tags,
		Type:          "download",
		State:         "draft",
		ShouldRenew:   true,
		StaticImageID: c.staticImageIDs,
	}

	body, err := c.Call(ctx, http.MethodPost,
		fmt.Sprintf("/application/shops/%s/listings", c.cfg.ShopID), payload)
	if err != nil {
		return "", fmt.Errorf("failed to create draft listing for %s: %w", d.Slug, err)
	}

	var created struct {
		ListingID int64 `json:"listing_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse create-listing response: %w", err)
	}
	listingID := fmt.Sprintf("%d", created.ListingID)

	for rank, mockup := range mockups {
		if err := c.uploadListingImage(ctx, listingID, mockup, rank+1); err != nil {
			return "", fmt.Errorf("failed to attach mockup %s: %w", filepath.Base(mockup), err)
		}
	}

	if pdf != "" {
		if err := c.uploadListingFile(ctx, listingID, pdf); err != nil {
			return "", fmt.Errorf("failed to attach delivery document: %w", err)
		}
	}

	c.logger.Info("draft listing created", "slug", d.Slug, "listingId", listingID, "images", len(mockups))
	return listingID, nil
}

// Prepare looks up the draft template listing by title and captures its
// static image IDs for reuse on every created listing. A missing template is
// not fatal: the batch proceeds without static images.
func (c *Client) Prepare(ctx context.Context) error {
	body, err := c.Call(ctx, http.MethodGet,
		fmt.Sprintf("/application/shops/%s/listings?state=draft&limit=100&includes=Images", c.cfg.ShopID), nil)
	if err != nil {
		return fmt.Errorf("failed to search for template listing: %w", err)
	}

	var listings struct {
		Results []struct {
			ListingID int64  `json:"listing_id"`
			Title     string `json:"title"`
			Images    []struct {
				ListingImageID int64 `json:"listing_image_id"`
			} `json:"images"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &listings); err != nil {
		return fmt.Errorf("failed to parse listings response: %w", err)
	}

	for _, listing := range listings.Results {
		if !strings.Contains(strings.ToLower(listing.Title), "digital download template") {
			continue
		}

		ids := make([]string, 0, len(listing.Images))
		for _, img := range listing.Images {
			ids = append(ids, fmt.Sprintf("%d", img.ListingImageID))
		}
		// the template's trailing images are the static ones: instructions,
		// what's included, size chart
		if len(ids) > 3 {
			ids = ids[len(ids)-3:]
		}
		c.staticImageIDs = ids

		c.logger.Info("template listing found",
			"listingId", listing.ListingID, "staticImages", len(ids))
		return nil
	}

	c.logger.Warn("no template listing found, proceeding without static images")
	return nil
}

// uploadListingImage attaches one mockup image to a listing via multipart upload.
func (c *Client) uploadListingImage(ctx context.Context, listingID, path string, rank int) error {
	endpoint := fmt.Sprintf("/application/shops/%s/listings/%s/images", c.cfg.ShopID, listingID)
	extra := map[string]string{"rank": fmt.Sprintf("%d", rank)}
	return c.uploadMultipart(ctx, endpoint, "image", path, extra)
}

// uploadListingFile attaches the delivery document as the listing's digital file.
func (c *Client) uploadListingFile(ctx context.Context, listingID, path string) error {
	endpoint := fmt.Sprintf("/application/shops/%s/listings/%s/files", c.cfg.ShopID, listingID)
	extra := map[string]string{"name": filepath.Base(path)}
	return c.uploadMultipart(ctx, endpoint, "file", path, extra)
}

func (c *Client) uploadMultipart(ctx context.Context, endpoint, field, path string, extra map[string]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for k, v := range extra {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write multipart field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return nil
}
