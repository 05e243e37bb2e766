// Package stats summarizes scan history for the overview screen.
package stats

import (
	"github.com/Brownie44l1/cassava-api/internal/catalog"
	"github.com/Brownie44l1/cassava-api/internal/model"
)

// LabelCount is the number of scans for one label.
type LabelCount struct {
	Label        string `json:"label"`
	Abbreviation string `json:"abbreviation"`
	Count        int    `json:"count"`
}

// Summary aggregates a scan history.
type Summary struct {
	Total      int          `json:"total"`
	MostCommon string       `json:"most_common"`
	Counts     []LabelCount `json:"counts"`
}

// Summarize counts scans per label. labels must be newest first; the most
// common label is the first one to take the lead in that order. Known labels
// come first in model.Labels order, then unknown ones in order of appearance.
func Summarize(labels []string) Summary {
	s := Summary{MostCommon: "None"}
	counts := make(map[string]int)
	var extra []string

	maxCount := 0
	for _, label := range labels {
		if _, seen := counts[label]; !seen && model.Labels.Index(label) < 0 {
			extra = append(extra, label)
		}
		counts[label]++
		s.Total++
		if counts[label] > maxCount {
			maxCount = counts[label]
			s.MostCommon = label
		}
	}

	for _, label := range model.Labels {
		if n := counts[label]; n > 0 {
			s.Counts = append(s.Counts, LabelCount{Label: label, Abbreviation: catalog.Abbreviation(label), Count: n})
		}
	}
	for _, label := range extra {
		s.Counts = append(s.Counts, LabelCount{Label: label, Abbreviation: catalog.Abbreviation(label), Count: counts[label]})
	}
	return s
}
