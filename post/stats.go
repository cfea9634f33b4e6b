package post

// Stats aggregated board numbers
type Stats struct {
	Total      int            `json:"total"`
	Open       int            `json:"open"`
	Resolved   int            `json:"resolved"`
	Cities     int            `json:"cities"`
	Needs      int            `json:"needs"`
	Offers     int            `json:"offers"`
	Categories map[string]int `json:"categories"`
}

// Stats counts the posts of the snapshot
func (s *Snapshot) Stats() *Stats {
	stats := &Stats{
		Categories: make(map[string]int, len(categories)),
	}
	for _, c := range categories {
		stats.Categories[c] = 0
	}
	cities := map[string]struct{}{}
	for _, p := range s.Posts {
		stats.Total++
		if p.Closed() {
			stats.Resolved++
		} else {
			stats.Open++
		}
		switch p.Type {
		case KindNeed:
			stats.Needs++
		case KindOffer:
			stats.Offers++
		}
		stats.Categories[p.Category]++
		if p.City != "" {
			cities[p.City] = struct{}{}
		}
	}
	stats.Cities = len(cities)
	return stats
}
