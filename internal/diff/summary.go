package diff

// FileStat counts the lines a diff adds to and removes from one file
type FileStat struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Summarize parses text and counts '+' and '-' hunk lines per file
func Summarize(text string) ([]FileStat, error) {
	patches, err := Parse(text)
	if err != nil {
		return nil, err
	}

	stats := make([]FileStat, 0, len(patches))
	for _, patch := range patches {
		stat := FileStat{Path: patch.Path()}
		for _, hunk := range patch.Hunks {
			for _, line := range hunk.Lines {
				if line == "" {
					continue
				}
				switch line[0] {
				case '+':
					stat.Additions++
				case '-':
					stat.Deletions++
				}
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Totals sums additions and deletions across stats
func Totals(stats []FileStat) (additions, deletions int) {
	for _, s := range stats {
		additions += s.Additions
		deletions += s.Deletions
	}
	return additions, deletions
}
