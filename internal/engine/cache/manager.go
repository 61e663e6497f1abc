package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"listforge/internal/engine/domain"
	"listforge/pkg/logger"
)

// Config carries the recognized cache-lifecycle options.
type Config struct {
	// Dirs is the fixed set of managed scratch directories.
	Dirs []string
	// RetentionCount is the number of most-recent successful design groups
	// to keep per directory, minimum 1.
	RetentionCount int
	// MaxCacheSizeMB is the soft ceiling on combined size across all managed
	// directories.
	MaxCacheSizeMB int64
	// CleanupOnSuccess controls whether successful designs trigger
	// retention-based pruning. The size ceiling is enforced either way.
	CleanupOnSuccess bool
}

// group is the set of files in one managed directory attributable to one
// successfully processed design.
type group struct {
	slug  string
	seq   uint64
	files []string
	bytes int64
}

// registration tracks the files written into each managed directory while a
// design is being processed. Consumed exactly once by MarkSuccess or MarkFailed.
type registration struct {
	slug  string
	seq   uint64
	files map[string][]string // managed dir -> file paths
}

// Manager owns the managed scratch directories: it bounds their combined disk
// usage while keeping the most recently successful designs' files available,
// and guarantees failed designs leave no files behind. The in-memory group
// index is rebuilt empty each run; files left by a prior process are invisible
// to it until an operator purge.
type Manager struct {
	cfg    Config
	dirs   []string            // cleaned managed directory paths, config order
	groups map[string][]*group // dir -> groups, newest first
	open   map[string]*registration
	seq    uint64
	mu     sync.Mutex
	logger *logger.Logger
}

// NewManager creates a cache manager and ensures every managed directory exists.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Dirs) == 0 {
		return nil, fmt.Errorf("cache manager requires at least one managed directory")
	}
	if cfg.RetentionCount < 1 {
		return nil, fmt.Errorf("retention count must be at least 1, got %d", cfg.RetentionCount)
	}

	m := &Manager{
		cfg:    cfg,
		groups: make(map[string][]*group, len(cfg.Dirs)),
		open:   make(map[string]*registration),
		logger: logger.WithField("component", "cache-manager"),
	}

	for _, dir := range cfg.Dirs {
		cleaned := filepath.Clean(dir)
		if err := os.MkdirAll(cleaned, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", cleaned, err)
		}
		m.dirs = append(m.dirs, cleaned)
		m.groups[cleaned] = nil
	}

	m.logger.Debug("cache manager initialized",
		"dirs", len(m.dirs),
		"retentionCount", cfg.RetentionCount,
		"maxCacheSizeMB", cfg.MaxCacheSizeMB,
		"cleanupOnSuccess", cfg.CleanupOnSuccess)
	return m, nil
}

// Register opens a registration for slug. A slug has at most one open
// registration at a time.
func (m *Manager) Register(slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.open[slug]; exists {
		return fmt.Errorf("design %s: %w", slug, domain.ErrDuplicateRegistration)
	}

	m.seq++
	m.open[slug] = &registration{
		slug:  slug,
		seq:   m.seq,
		files: make(map[string][]string),
	}

	m.logger.Debug("registered design for processing", "slug", slug)
	return nil
}

// AddFile attributes a file written by a stage collaborator to the open
// registration for slug. Paths outside every managed directory are ignored
// with a warning; the cache never deletes what it does not own.
func (m *Manager) AddFile(slug, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, exists := m.open[slug]
	if !exists {
		return fmt.Errorf("design %s: %w", slug, domain.ErrUnknownRegistration)
	}

	dir, ok := m.managedDir(path)
	if !ok {
		m.logger.Warn("file outside managed directories ignored", "slug", slug, "path", path)
		return nil
	}

	reg.files[dir] = append(reg.files[dir], filepath.Clean(path))
	return nil
}

// MarkSuccess closes the registration for slug as successful, folds its files
// into each directory's group history as the newest group, then prunes: first
// retention-count excess groups per directory (when cleanup-on-success is
// enabled), then globally oldest groups until the size ceiling is met or each
// directory is down to one group.
func (m *Manager) MarkSuccess(slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, exists := m.open[slug]
	if !exists {
		return fmt.Errorf("design %s: %w", slug, domain.ErrUnknownRegistration)
	}
	delete(m.open, slug)

	for dir, files := range reg.files {
		g := &group{slug: slug, seq: reg.seq, files: files}
		for _, f := range files {
			if info, err := os.Stat(f); err == nil {
				g.bytes += info.Size()
			}
		}
		// newest first
		m.groups[dir] = append([]*group{g}, m.groups[dir]...)
	}

	m.logger.Info("design marked successful", "slug", slug)

	if m.cfg.CleanupOnSuccess {
		m.pruneRetention()
	}
	m.pruneToCeiling()
	return nil
}

// MarkFailed closes the registration for slug as failed and immediately
// deletes every file tracked under it. Failed-design artifacts are never
// useful and must not consume the retention budget.
func (m *Manager) MarkFailed(slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, exists := m.open[slug]
	if !exists {
		return fmt.Errorf("design %s: %w", slug, domain.ErrUnknownRegistration)
	}
	delete(m.open, slug)

	removed := 0
	for _, files := range reg.files {
		for _, f := range files {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("failed to remove file of failed design", "slug", slug, "path", f, "error", err)
				continue
			}
			removed++
		}
	}

	m.logger.Warn("design marked failed, scratch files purged", "slug", slug, "filesRemoved", removed)
	return nil
}

// ForceCleanupAll deletes every file in every managed directory and resets the
// in-memory index. Intended for operator-triggered resets, not pipeline flow;
// refuses to run without explicit confirmation.
func (m *Manager) ForceCleanupAll(confirm bool) error {
	if !confirm {
		return domain.ErrCleanupNotConfirmed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dir := range m.dirs {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear cache directory %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to recreate cache directory %s: %w", dir, err)
		}
		m.groups[dir] = nil
	}
	m.open = make(map[string]*registration)

	m.logger.Info("force cleanup complete", "dirs", len(m.dirs))
	return nil
}

// DirStatus is the read-only view of one managed directory.
type DirStatus struct {
	Dir    string
	Groups int
	Files  int
	Bytes  int64
}

// Status reports the tracked state per directory plus the grand total.
// Directories with zero tracked groups report zero size.
func (m *Manager) Status() ([]DirStatus, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var statuses []DirStatus
	var total int64
	for _, dir := range m.dirs {
		s := DirStatus{Dir: dir}
		for _, g := range m.groups[dir] {
			s.Groups++
			s.Files += len(g.files)
			s.Bytes += g.bytes
		}
		total += s.Bytes
		statuses = append(statuses, s)
	}
	return statuses, total
}

// LogStatus logs the per-directory and total cache usage against the ceiling.
func (m *Manager) LogStatus() {
	statuses, total := m.Status()

	m.logger.Info("cache status", "totalMB", bytesToMB(total), "ceilingMB", m.cfg.MaxCacheSizeMB)
	for _, s := range statuses {
		m.logger.Info("cache directory",
			"dir", s.Dir, "groups", s.Groups, "files", s.Files, "sizeMB", bytesToMB(s.Bytes))
	}
	if total > m.cfg.MaxCacheSizeMB*1024*1024 {
		m.logger.Warn("cache size exceeds configured ceiling",
			"totalMB", bytesToMB(total), "ceilingMB", m.cfg.MaxCacheSizeMB)
	}
}

// pruneRetention removes the oldest groups beyond the retention count in each
// directory. Caller holds the lock.
func (m *Manager) pruneRetention() {
	for _, dir := range m.dirs {
		for len(m.groups[dir]) > m.cfg.RetentionCount {
			oldest := m.groups[dir][len(m.groups[dir])-1]
			m.deleteGroup(dir, oldest)
		}
	}
}

// pruneToCeiling removes globally-oldest groups, irrespective of directory,
// until the total size is under the ceiling or every directory is down to one
// group. Equal-recency ties evict the earlier-registered group first, which
// the monotonic sequence number encodes. Caller holds the lock.
func (m *Manager) pruneToCeiling() {
	ceiling := m.cfg.MaxCacheSizeMB * 1024 * 1024

	for m.totalBytes() > ceiling {
		dir, victim := m.oldestEvictable()
		if victim == nil {
			// floor case: one group left per directory
			m.logger.Warn("cache size exceeds ceiling but no evictable groups remain",
				"totalMB", bytesToMB(m.totalBytes()), "ceilingMB", m.cfg.MaxCacheSizeMB)
			return
		}
		m.deleteGroup(dir, victim)
	}
}

// oldestEvictable finds the lowest-sequence group among directories that still
// hold more than one group. Caller holds the lock.
func (m *Manager) oldestEvictable() (string, *group) {
	var (
		bestDir string
		best    *group
	)
	for _, dir := range m.dirs {
		groups := m.groups[dir]
		if len(groups) <= 1 {
			continue
		}
		candidate := groups[len(groups)-1]
		if best == nil || candidate.seq < best.seq {
			bestDir, best = dir, candidate
		}
	}
	return bestDir, best
}

func (m *Manager) totalBytes() int64 {
	var total int64
	for _, dir := range m.dirs {
		for _, g := range m.groups[dir] {
			total += g.bytes
		}
	}
	return total
}

// deleteGroup removes a group's files from disk and drops it from the index.
// Caller holds the lock.
func (m *Manager) deleteGroup(dir string, victim *group) {
	for _, f := range victim.files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove evicted file", "slug", victim.slug, "path", f, "error", err)
		}
	}

	groups := m.groups[dir]
	for i, g := range groups {
		if g == victim {
			m.groups[dir] = append(groups[:i], groups[i+1:]...)
			break
		}
	}

	m.logger.Debug("evicted design group",
		"slug", victim.slug, "dir", dir, "files", len(victim.files), "sizeMB", bytesToMB(victim.bytes))
}

// managedDir returns the managed directory containing path, if any. The
// longest matching directory wins when managed directories nest.
func (m *Manager) managedDir(path string) (string, bool) {
	cleaned := filepath.Clean(path)

	matches := make([]string, 0, 1)
	for _, dir := range m.dirs {
		if strings.HasPrefix(cleaned, dir+string(filepath.Separator)) {
			matches = append(matches, dir)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool { return len(matches[i]) > len(matches[j]) })
	return matches[0], true
}

func bytesToMB(b int64) float64 {
	return float64(b) / (1024 * 1024)
}
