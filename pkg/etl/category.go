package etl

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultCategory is assigned to causes with no mapping. Unmapped causes are
// counted and reported in the run summary, never surfaced per-row.
const DefaultCategory = "Other"

// CategoryMap maps canonical cause names to one of the fixed category labels
// (Communicable, NCD, Injury). Static lookup, not runtime-mutable.
type CategoryMap map[string]string

// causeCategories is the built-in cause classification for the annual
// cause-of-death dataset.
var causeCategories = CategoryMap{
	// Communicable, maternal, neonatal, and nutritional diseases
	"Meningitis":                     "Communicable",
	"Lower respiratory infections":   "Communicable",
	"Intestinal infectious diseases": "Communicable",
	"Tuberculosis":                   "Communicable",
	"Malaria":                        "Communicable",
	"HIV/AIDS":                       "Communicable",
	"Acute hepatitis":                "Communicable",
	"Maternal disorders":             "Communicable",
	"Neonatal disorders":             "Communicable",
	"Nutritional deficiencies":       "Communicable",

	// Non-communicable diseases
	"Cardiovascular diseases":                    "NCD",
	"Neoplasms":                                  "NCD",
	"Diabetes mellitus":                          "NCD",
	"Chronic kidney disease":                     "NCD",
	"Chronic respiratory diseases":               "NCD",
	"Cirrhosis and other chronic liver diseases": "NCD",
	"Digestive diseases":                         "NCD",
	"Alzheimer's disease and other dementias":    "NCD",
	"Parkinson's disease":                        "NCD",
	"Alcohol use disorders":                      "NCD",
	"Drug use disorders":                         "NCD",

	// Injuries
	"Road injuries":                        "Injury",
	"Drowning":                             "Injury",
	"Fire, heat, and hot substances":       "Injury",
	"Interpersonal violence":               "Injury",
	"Self-harm":                            "Injury",
	"Conflict and terrorism":               "Injury",
	"Exposure to forces of nature":         "Injury",
	"Environmental heat and cold exposure": "Injury",
	"Poisonings":                           "Injury",
}

// DefaultCategories returns a copy of the built-in cause→category mapping.
func DefaultCategories() CategoryMap {
	out := make(CategoryMap, len(causeCategories))
	for k, v := range causeCategories {
		out[k] = v
	}
	return out
}

// LoadCategories returns the built-in mapping, merged with the JSON override
// file at path when non-empty. Overrides win on conflict.
func LoadCategories(path string) (CategoryMap, error) {
	categories := DefaultCategories()
	if path == "" {
		return categories, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category overrides %s: %w", path, err)
	}

	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse category overrides %s: %w", path, err)
	}

	for cause, category := range overrides {
		categories[cause] = category
	}

	return categories, nil
}

// Classify returns the category for a cause and whether the cause was mapped.
// Unmapped causes get DefaultCategory.
func (m CategoryMap) Classify(cause string) (string, bool) {
	if category, ok := m[cause]; ok {
		return category, true
	}
	return DefaultCategory, false
}
