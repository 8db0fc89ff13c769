// Package dating finds the calendar dates mentioned in recognized text and
// picks the one most likely to be the document's own date.
package dating

import (
	"fmt"
	"sort"
	"strings"
	"time"

	dateparser "github.com/markusmobius/go-dateparser"
	"golang.org/x/text/language"
)

// Candidate is one date mention found in text.
type Candidate struct {
	Text string
	Date time.Time
}

// Day formats the candidate's calendar date as YYYY-MM-DD.
func (c Candidate) Day() string {
	return c.Date.Format(time.DateOnly)
}

// Extractor finds date mentions in text.
type Extractor interface {
	Extract(text string) ([]Candidate, error)
}

// DateParser extracts dates with go-dateparser under strict parsing, so
// only mentions that resolve to a complete calendar date are returned.
type DateParser struct {
	// Languages are ISO 639-1 codes; empty lets the parser detect them.
	Languages []string
	Now       func() time.Time
}

// NewDateParser returns a parser for the given OCR language code, such as
// "deu" or "deu+eng".
func NewDateParser(ocrLanguage string) *DateParser {
	return &DateParser{Languages: LanguageFor(ocrLanguage), Now: time.Now}
}

// Extract returns every strictly parsed date mention in text.
func (p *DateParser) Extract(text string) ([]Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	cfg := &dateparser.Configuration{
		Languages:     p.Languages,
		StrictParsing: true,
		DateOrder:     dateOrder(p.Languages),
	}
	if p.Now != nil {
		cfg.CurrentTime = p.Now()
	}

	_, results, err := dateparser.Search(cfg, text)
	if err != nil {
		return nil, fmt.Errorf("search dates: %w", err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		if r.Date.Time.IsZero() {
			continue
		}
		candidates = append(candidates, Candidate{Text: r.Text, Date: calendarDate(r.Date.Time)})
	}
	return candidates, nil
}

// Select returns the latest candidate dated strictly before today. The
// candidates are walked in ascending date order and the walk stops at the
// first one dated today or later, so a date following a future date is
// never chosen.
func Select(candidates []Candidate, today time.Time) (Candidate, bool) {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return calendarDate(sorted[i].Date).Before(calendarDate(sorted[j].Date))
	})

	cutoff := calendarDate(today)
	var best Candidate
	found := false
	for _, c := range sorted {
		if !calendarDate(c.Date).Before(cutoff) {
			break
		}
		best = c
		found = true
	}
	return best, found
}

// Selector combines an extractor with the selection rule.
type Selector struct {
	Extractor Extractor
	Now       func() time.Time
}

// SelectDate extracts the dates in text and selects one. Finding no date
// is not an error.
func (s *Selector) SelectDate(text string) (Candidate, bool, error) {
	candidates, err := s.Extractor.Extract(text)
	if err != nil {
		return Candidate{}, false, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	c, ok := Select(candidates, now())
	return c, ok, nil
}

// LanguageFor maps an OCR language setting such as "deu+eng" to the
// ISO 639-1 codes the date parser expects. Unknown codes are dropped.
func LanguageFor(ocrLanguage string) []string {
	var out []string
	seen := map[string]bool{}
	for _, code := range strings.Split(ocrLanguage, "+") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		iso := base.String()
		if !seen[iso] {
			seen[iso] = true
			out = append(out, iso)
		}
	}
	return out
}

// dateOrder pins numeric dates to the component order of the first
// configured language, so "10.06.2023" reads as 10 June under "de".
func dateOrder(languages []string) dateparser.DateOrder {
	if len(languages) == 0 {
		return nil
	}
	order := dateparser.DefaultDateOrder(languages[0])
	return func(string) string { return order }
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
