package dupes

import (
	"math"
	"strings"
	"sync"

	"bug-report-triage/backend/internal/store"
)

// Match describes the closest stored report for a candidate title.
type Match struct {
	ReportID   uint
	Title      string
	Similarity float64
}

// Service maintains an in-memory similarity index over stored report titles
// so probable duplicates can be flagged at submission time.
type Service struct {
	db      *store.Database
	mu      sync.RWMutex
	entries []entry
	cache   map[string]cacheEntry
}

type entry struct {
	id         uint
	title      string
	normalized string
}

type cacheEntry struct {
	match Match
	found bool
}

func NewService(db *store.Database) *Service {
	return &Service{
		db:    db,
		cache: make(map[string]cacheEntry),
	}
}

// Rebuild reloads the index from the persisted reports.
func (s *Service) Rebuild() (int, error) {
	rows, err := s.db.ListReportTitles()
	if err != nil {
		return 0, err
	}
	entries := make([]entry, 0, len(rows))
	for _, row := range rows {
		normalized := normalizeTitle(row.Title)
		if normalized == "" {
			continue
		}
		entries = append(entries, entry{id: row.ID, title: row.Title, normalized: normalized})
	}
	s.mu.Lock()
	s.entries = entries
	s.cache = make(map[string]cacheEntry)
	s.mu.Unlock()
	return len(entries), nil
}

// Add registers a newly persisted report without a full rebuild.
func (s *Service) Add(id uint, title string) {
	normalized := normalizeTitle(title)
	if normalized == "" {
		return
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry{id: id, title: title, normalized: normalized})
	s.cache = make(map[string]cacheEntry)
	s.mu.Unlock()
}

// Count returns the number of indexed titles.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// BestMatch returns the most similar indexed title, excluding the report id
// given as self (zero to exclude nothing).
func (s *Service) BestMatch(title string, self uint) (Match, bool) {
	normalized := normalizeTitle(title)
	if normalized == "" {
		return Match{}, false
	}

	if self == 0 {
		if cached, ok := s.lookupCache(normalized); ok {
			return cached.match, cached.found
		}
	}

	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	var best Match
	var found bool
	for _, candidate := range entries {
		if candidate.id == self {
			continue
		}
		sim := similarity(normalized, candidate.normalized)
		if sim > best.Similarity {
			best = Match{ReportID: candidate.id, Title: candidate.title, Similarity: sim}
			found = true
		}
	}

	if self == 0 {
		s.storeCache(normalized, cacheEntry{match: best, found: found})
	}
	if !found {
		return Match{}, false
	}
	return best, true
}

func (s *Service) lookupCache(key string) (cacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[key]
	return entry, ok
}

func (s *Service) storeCache(key string, entry cacheEntry) {
	s.mu.Lock()
	s.cache[key] = entry
	s.mu.Unlock()
}

// normalizeTitle lowers the title and collapses it to alphanumeric runes so
// punctuation and spacing differences do not defeat the comparison.
func normalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func similarity(a, b string) float64 {
	aRunes := []rune(a)
	bRunes := []rune(b)
	if len(aRunes) == 0 && len(bRunes) == 0 {
		return 1
	}
	if len(aRunes) == 0 || len(bRunes) == 0 {
		return 0
	}

	dist := levenshtein(aRunes, bRunes)
	maxLen := math.Max(float64(len(aRunes)), float64(len(bRunes)))
	if maxLen == 0 {
		return 1
	}

	score := 1 - float64(dist)/maxLen
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func levenshtein(a, b []rune) int {
	rows := len(a) + 1
	cols := len(b) + 1

	dp := make([]int, rows*cols)

	index := func(r, c int) int {
		return r*cols + c
	}

	for r := 0; r < rows; r++ {
		dp[index(r, 0)] = r
	}
	for c := 0; c < cols; c++ {
		dp[index(0, c)] = c
	}

	for r := 1; r < rows; r++ {
		for c := 1; c < cols; c++ {
			cost := 0
			if a[r-1] != b[c-1] {
				cost = 1
			}
			deletion := dp[index(r-1, c)] + 1
			insertion := dp[index(r, c-1)] + 1
			substitution := dp[index(r-1, c-1)] + cost
			dp[index(r, c)] = minInt(deletion, insertion, substitution)
		}
	}

	return dp[index(rows-1, cols-1)]
}

func minInt(values ...int) int {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
