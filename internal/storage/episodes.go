package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Episode is one consolidated session, keyed by calendar date. At most one
// live record per date; a second same-day consolidation overwrites.
type Episode struct {
	Date           string
	Summary        string
	NewFacts       []string
	OpenLoops      []string
	EmotionalNotes string
	TrustStage     int
	Exchanges      int
	CarryOver      string
}

func (s *Store) episodesDir() string {
	return filepath.Join(s.dataDir, "episodes")
}

func (s *Store) episodePath(date string) string {
	return filepath.Join(s.episodesDir(), date+".md")
}

// WriteEpisode persists the episode under its date, overwriting any earlier
// record for the same day.
func (s *Store) WriteEpisode(ep Episode) error {
	if err := os.MkdirAll(s.episodesDir(), 0755); err != nil {
		return fmt.Errorf("storage: create episodes dir: %w", err)
	}
	if err := os.WriteFile(s.episodePath(ep.Date), []byte(renderEpisode(ep)), 0644); err != nil {
		return fmt.Errorf("storage: write episode: %w", err)
	}
	return nil
}

// TodayEpisode returns today's episode if one exists.
func (s *Store) TodayEpisode(today string) (Episode, bool) {
	return s.readEpisode(today)
}

func (s *Store) readEpisode(date string) (Episode, bool) {
	data, err := os.ReadFile(s.episodePath(date))
	if err != nil {
		return Episode{}, false
	}
	return parseEpisode(date, string(data)), true
}

// RecentEpisodes returns up to n episodes, newest first.
func (s *Store) RecentEpisodes(n int) []Episode {
	dates := s.episodeDates()
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > n {
		dates = dates[:n]
	}
	eps := make([]Episode, 0, len(dates))
	for _, d := range dates {
		if ep, ok := s.readEpisode(d); ok {
			eps = append(eps, ep)
		}
	}
	return eps
}

// LastCarryOver returns the carry-over line of the most recent episode.
func (s *Store) LastCarryOver() string {
	eps := s.RecentEpisodes(1)
	if len(eps) == 0 {
		return ""
	}
	return eps[0].CarryOver
}

// PruneEpisodes deletes episodes older than retentionDays. Returns the
// number removed.
func (s *Store) PruneEpisodes(retentionDays int, now time.Time) int {
	cutoff := now.AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, d := range s.episodeDates() {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		if t.Before(cutoff) {
			if os.Remove(s.episodePath(d)) == nil {
				deleted++
			}
		}
	}
	return deleted
}

func (s *Store) episodeDates() []string {
	entries, err := os.ReadDir(s.episodesDir())
	if err != nil {
		return nil
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		date := strings.TrimSuffix(name, ".md")
		if _, err := time.Parse("2006-01-02", date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	return dates
}

// Render returns the episode in its on-disk markdown form, also used when
// feeding episodes back into prompts.
func (ep Episode) Render() string {
	return renderEpisode(ep)
}

func renderEpisode(ep Episode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", ep.Date)
	fmt.Fprintf(&b, "## summary\n%s\n\n", ep.Summary)

	b.WriteString("## new facts\n")
	writeList(&b, ep.NewFacts)
	b.WriteString("\n## open loops\n")
	writeList(&b, ep.OpenLoops)

	notes := ep.EmotionalNotes
	if notes == "" {
		notes = "none"
	}
	fmt.Fprintf(&b, "\n## emotional notes\n%s\n\n", notes)
	fmt.Fprintf(&b, "## trust: %d | meaningful_exchanges: %d\n", ep.TrustStage, ep.Exchanges)

	if ep.CarryOver != "" {
		fmt.Fprintf(&b, "\n## carry_over\n%s\n", ep.CarryOver)
	}
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("none\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func parseEpisode(date, content string) Episode {
	ep := Episode{Date: date}
	for _, section := range strings.Split(content, "\n## ") {
		header, body, found := strings.Cut(section, "\n")
		if !found {
			header = section
			body = ""
		}
		header = strings.TrimSpace(header)
		body = strings.TrimSpace(body)
		switch {
		case header == "summary":
			ep.Summary = body
		case header == "new facts":
			ep.NewFacts = parseList(body)
		case header == "open loops":
			ep.OpenLoops = parseList(body)
		case header == "emotional notes":
			if body != "none" {
				ep.EmotionalNotes = body
			}
		case header == "carry_over":
			ep.CarryOver = body
		case strings.HasPrefix(header, "trust:"):
			fmt.Sscanf(header, "trust: %d | meaningful_exchanges: %d", &ep.TrustStage, &ep.Exchanges)
		}
	}
	return ep
}

func parseList(body string) []string {
	var items []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			items = append(items, strings.TrimPrefix(line, "- "))
		}
	}
	return items
}
