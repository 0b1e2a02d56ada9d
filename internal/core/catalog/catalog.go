// Package catalog provides the static metadata lookup built once per
// corpus load. It validates course codes and resolves free-text titles to
// codes via fuzzy matching.
package catalog

import (
	"sort"
	"strings"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

// DefaultFuzzyCutoff is the minimum similarity for a fuzzy title match.
const DefaultFuzzyCutoff = 0.78

// Catalog is read-only after construction. Lookups never fail; absence is
// signaled by empty returns.
type Catalog struct {
	codesToTitles map[string]string
	codesToFiles  map[string]map[string]struct{}
	titleToCodes  map[string][]string // lowercased title -> codes, sorted
	titles        []string            // unique original-case titles, sorted
}

// Build scans every document's metadata once. The first title seen for a
// code wins; duplicate titles collapse.
func Build(docs []domain.Document) *Catalog {
	c := &Catalog{
		codesToTitles: make(map[string]string),
		codesToFiles:  make(map[string]map[string]struct{}),
		titleToCodes:  make(map[string][]string),
	}

	titleSet := make(map[string]string) // lowercased -> original case
	for _, doc := range docs {
		code := strings.TrimSpace(doc.Metadata.CourseCode)
		title := strings.TrimSpace(doc.Metadata.CourseTitle)
		filename := strings.TrimSpace(doc.Metadata.FileName)

		if code != "" {
			if title != "" {
				if _, ok := c.codesToTitles[code]; !ok {
					c.codesToTitles[code] = title
				}
			}
			if filename != "" {
				if c.codesToFiles[code] == nil {
					c.codesToFiles[code] = make(map[string]struct{})
				}
				c.codesToFiles[code][filename] = struct{}{}
			}
		}
		if title != "" {
			if _, ok := titleSet[strings.ToLower(title)]; !ok {
				titleSet[strings.ToLower(title)] = title
			}
		}
	}

	for _, title := range titleSet {
		c.titles = append(c.titles, title)
	}
	sort.Strings(c.titles)

	for code, title := range c.codesToTitles {
		key := strings.ToLower(title)
		c.titleToCodes[key] = append(c.titleToCodes[key], code)
	}
	for _, codes := range c.titleToCodes {
		sort.Strings(codes)
	}

	return c
}

// ExistsCode is an exact membership test.
func (c *Catalog) ExistsCode(code string) bool {
	_, ok := c.codesToTitles[code]
	return ok
}

// Title returns the title registered for a code.
func (c *Catalog) Title(code string) (string, bool) {
	title, ok := c.codesToTitles[code]
	return title, ok
}

// FuzzyTitleToCode compares text against every known title and returns
// the code of the single best-scoring title when the score reaches the
// cutoff. Ties break to the lexicographically smallest title (catalog
// iteration is sorted), then to the smallest code, so results are
// deterministic across runs.
func (c *Catalog) FuzzyTitleToCode(text string, cutoff float64) (code string, score float64, ok bool) {
	if len(c.titles) == 0 || strings.TrimSpace(text) == "" {
		return "", 0, false
	}

	bestTitle := ""
	bestScore := 0.0
	for _, title := range c.titles {
		if s := sequenceRatio(text, title); s > bestScore {
			bestTitle, bestScore = title, s
		}
	}
	if bestTitle == "" || bestScore < cutoff {
		return "", 0, false
	}

	codes := c.titleToCodes[strings.ToLower(bestTitle)]
	if len(codes) == 0 {
		return "", 0, false
	}
	return codes[0], bestScore, true
}

// CodeForTitle resolves an exact (case-insensitive) title to its code.
func (c *Catalog) CodeForTitle(title string) (string, bool) {
	codes := c.titleToCodes[strings.ToLower(strings.TrimSpace(title))]
	if len(codes) == 0 {
		return "", false
	}
	return codes[0], true
}

// AllCodes returns every course code, sorted.
func (c *Catalog) AllCodes() []string {
	codes := make([]string, 0, len(c.codesToTitles))
	for code := range c.codesToTitles {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// AllTitles returns every unique title, sorted.
func (c *Catalog) AllTitles() []string {
	return append([]string(nil), c.titles...)
}

// Stats summarizes the catalog contents.
func (c *Catalog) Stats() domain.CatalogStats {
	files := 0
	for _, set := range c.codesToFiles {
		files += len(set)
	}
	return domain.CatalogStats{
		CodeCount:  len(c.codesToTitles),
		TitleCount: len(c.titles),
		FileCount:  files,
	}
}
