package discovery_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"listforge/internal/engine/discovery"
	"listforge/internal/engine/domain"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscover_DimensionPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sunset_harbor__w=2000__h=3000.png")

	designs, err := discovery.New(root).Discover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(designs) != 1 {
		t.Fatalf("expected 1 design, got %d", len(designs))
	}

	d := designs[0]
	if d.Slug != "sunset_harbor" {
		t.Errorf("expected slug sunset_harbor, got %q", d.Slug)
	}
	if d.Width != 2000 || d.Height != 3000 {
		t.Errorf("expected 2000x3000, got %dx%d", d.Width, d.Height)
	}
}

func TestDiscover_DescriptiveFilenameFallback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Misty Mountains - Blue.jpg")

	designs, err := discovery.New(root).Discover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(designs) != 1 {
		t.Fatalf("expected 1 design, got %d", len(designs))
	}

	d := designs[0]
	if d.Slug != "Misty_Mountains___Blue" {
		t.Errorf("unexpected slug %q", d.Slug)
	}
	if d.Width != 2000 || d.Height != 2000 {
		t.Errorf("expected default 2000x2000, got %dx%d", d.Width, d.Height)
	}
}

func TestDiscover_VectorCompanion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "wave__w=1000__h=1000.png")
	vector := writeFile(t, root, "wave__w=1000__h=1000.svg")

	designs, err := discovery.New(root).Discover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(designs) != 1 {
		t.Fatalf("expected 1 design (svg is a companion, not a design), got %d", len(designs))
	}
	if designs[0].VectorPath != vector {
		t.Errorf("expected vector companion %q, got %q", vector, designs[0].VectorPath)
	}
}

func TestDiscover_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b_design.png")
	writeFile(t, root, "a_design.png")
	writeFile(t, root, "c_design.png")

	designs, err := discovery.New(root).Discover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a_design", "b_design", "c_design"}
	if len(designs) != len(want) {
		t.Fatalf("expected %d designs, got %d", len(want), len(designs))
	}
	for i, slug := range want {
		if designs[i].Slug != slug {
			t.Errorf("position %d: expected %q, got %q", i, slug, designs[i].Slug)
		}
	}
}

func TestDiscover_IgnoresNonImages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "design.png")
	writeFile(t, root, "notes.txt")
	writeFile(t, root, "standalone.svg")
	if err := os.Mkdir(filepath.Join(root, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	designs, err := discovery.New(root).Discover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(designs) != 1 {
		t.Errorf("expected only the png to be discovered, got %d entries", len(designs))
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := discovery.New(filepath.Join(t.TempDir(), "nope")).Discover()
	if !errors.Is(err, domain.ErrDiscoveryRootMissing) {
		t.Errorf("expected ErrDiscoveryRootMissing, got %v", err)
	}
}

func TestDiscover_EmptyRoot(t *testing.T) {
	designs, err := discovery.New(t.TempDir()).Discover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(designs) != 0 {
		t.Errorf("expected no designs, got %d", len(designs))
	}
}
