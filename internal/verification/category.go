package verification

import (
	"context"
	"fmt"
	"strings"
)

// categoryKeywords maps each supported issue category to the vocabulary a
// matching description tends to use. Keyword coverage is an imprecise
// heuristic, so a mismatch never fails the check outright.
var categoryKeywords = map[string][]string{
	"Road Infrastructure": {
		"road", "street", "pavement", "pothole", "crack", "asphalt",
		"highway", "lane", "traffic", "intersection", "crosswalk",
	},
	"Water & Drainage": {
		"water", "drain", "sewer", "pipe", "leak", "flood", "puddle",
		"manhole", "gutter", "overflow", "sewage",
	},
	"Street Lighting": {
		"light", "lamp", "pole", "streetlight", "bulb", "dark",
		"illumination", "lighting", "fixture",
	},
	"Waste Management": {
		"garbage", "trash", "waste", "bin", "dumpster", "litter",
		"rubbish", "disposal", "recycling", "dump",
	},
	"Traffic & Transportation": {
		"traffic", "signal", "sign", "bus", "stop", "parking",
		"vehicle", "car", "transport", "congestion",
	},
	"Public Safety": {
		"danger", "hazard", "unsafe", "broken", "damaged", "risk",
		"accident", "injury", "security", "crime",
	},
	"Parks & Recreation": {
		"park", "playground", "bench", "tree", "grass", "garden",
		"recreation", "sports", "field", "path",
	},
	"Utilities & Power": {
		"power", "electric", "utility", "wire", "cable", "transformer",
		"pole", "outage", "electricity", "gas",
	},
	"Building & Construction": {
		"building", "construction", "structure", "wall", "roof",
		"foundation", "demolition", "renovation", "property",
	},
	"Environmental Issues": {
		"pollution", "environment", "air", "noise", "smell", "odor",
		"contamination", "toxic", "hazardous", "waste",
	},
	"Public Health": {
		"health", "sanitation", "hygiene", "pest", "rodent", "insect",
		"disease", "medical", "clinic", "hospital",
	},
	"Community Services": {
		"community", "service", "facility", "center", "public",
		"amenity", "resource", "program",
	},
}

// SupportedCategories lists the categories the relevance check knows about.
func SupportedCategories() []string {
	categories := make([]string, 0, len(categoryKeywords))
	for c := range categoryKeywords {
		categories = append(categories, c)
	}
	return categories
}

// categoryRelevanceCheck scores whether the free-text description plausibly
// matches the claimed category.
type categoryRelevanceCheck struct{}

func (categoryRelevanceCheck) Name() string { return CheckNameCategoryRelevance }

func (categoryRelevanceCheck) Run(_ context.Context, sub *Submission) CheckResult {
	keywords, ok := categoryKeywords[sub.Category]
	if !ok {
		return CheckResult{
			Status:     CheckWarning,
			Confidence: 0.6,
			Details:    fmt.Sprintf("Unknown category: %s", sub.Category),
			Metadata:   map[string]any{"category": sub.Category},
		}
	}

	description := strings.ToLower(sub.Description)
	var matches []string
	for _, kw := range keywords {
		if strings.Contains(description, kw) {
			matches = append(matches, kw)
		}
	}

	matchRatio := float64(len(matches)) / float64(len(keywords))
	confidence := 0.5 + matchRatio*0.5

	var status CheckStatus
	var details string
	switch {
	case matchRatio >= 0.2:
		status = CheckPassed
		details = fmt.Sprintf("Category '%s' appears relevant. Matched keywords: %s",
			sub.Category, strings.Join(firstN(matches, 5), ", "))
	case matchRatio >= 0.1:
		status = CheckWarning
		details = fmt.Sprintf("Category '%s' may be relevant but confidence is low. Matched: %s",
			sub.Category, strings.Join(matches, ", "))
	default:
		status = CheckWarning
		details = fmt.Sprintf("Category '%s' relevance unclear. Few matching keywords found.", sub.Category)
	}

	return CheckResult{
		Status:     status,
		Confidence: confidence,
		Details:    details,
		Metadata: map[string]any{
			"category":         sub.Category,
			"matched_keywords": firstN(matches, 10),
			"match_ratio":      matchRatio,
		},
	}
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
