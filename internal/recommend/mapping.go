// Package recommend implements the onboarding folder-recommendation engine.
package recommend

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mapping holds the folder-recommendation tables. The tables are authored
// configuration data, loaded once at startup and read-only afterwards.
type Mapping struct {
	// StarterPack folders are assigned to every new user unconditionally.
	StarterPack []int64 `yaml:"starter_pack"`

	// Roles maps a professional-role code to its folder pack.
	Roles map[string][]int64 `yaml:"roles"`

	// Industries maps an industry code to industry-specific folders.
	Industries map[string][]int64 `yaml:"industries"`

	// Seniorities maps a seniority bracket to career-stage folders.
	Seniorities map[string][]int64 `yaml:"seniorities"`

	// Interests maps an interest code to interest-driven folders.
	Interests map[string][]int64 `yaml:"interests"`
}

// DefaultMapping returns the built-in recommendation tables. The contents
// track the curated folder catalog; deployments with a different catalog
// override them wholesale via LoadMappingFile.
func DefaultMapping() *Mapping {
	return &Mapping{
		StarterPack: []int64{1, 2, 3},

		Roles: map[string][]int64{
			"leadership":                    {4, 5},
			"executive":                     {4, 5},
			"product_dev_teams":             {6, 7},
			"content_comm_specialists":      {8, 9},
			"analysts_researchers":          {10, 11},
			"sales_marketing":               {12, 13},
			"customer_client_facing":        {14, 15},
			"hr_training_professionals":     {16, 17},
			"entrepreneurs_business_owners": {18, 19},
			"finance":                       {20, 21},
			"freelance":                     {22, 23},
		},

		Industries: map[string][]int64{
			"tech_software_dev":                {6, 7, 10},
			"healthcare_medical":               {15, 16},
			"legal_law":                        {17, 18},
			"finance_banking":                  {20, 21},
			"marketing_advertising":            {12, 13, 8},
			"consulting_professional_services": {4, 5, 10},
			"manufacturing_production":         {4, 10},
			"media_entertainment":              {8, 9},
			"real_estate":                      {12, 14},
			"ecommerce_retail":                 {12, 13, 14},
			"education_training":               {16, 17},
			"hr_recruitment":                   {16, 17},
			"customer_service_support":         {14, 15},
		},

		Seniorities: map[string][]int64{
			"student":      {1, 2},
			"junior_0_5":   {1, 2, 3},
			"mid_5_10":     {3, 4},
			"senior_10_15": {4, 5},
			"lead_15_plus": {4, 5, 6},
			"executive":    {4, 5, 6},
		},

		Interests: map[string][]int64{
			"writing":           {8, 9},
			"coding":            {6, 7},
			"data_analysis":     {10, 11},
			"research":          {10, 11, 17},
			"creativity":        {8, 9},
			"learning":          {16, 17, 1},
			"marketing":         {12, 13},
			"email":             {9, 14},
			"summarizing":       {10, 11},
			"critical_thinking": {4, 10, 11},
			"customer_support":  {14, 15},
			"decision_making":   {4, 5},
			"language_learning": {1, 16},
		},
	}
}

// LoadMappingFile loads recommendation tables from a YAML file, replacing the
// built-in defaults entirely.
func LoadMappingFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}

	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validate mapping file: %w", err)
	}

	return &m, nil
}

// Validate checks structural invariants of the tables. Unknown category codes
// at lookup time are fine; malformed authored data is not.
func (m *Mapping) Validate() error {
	if len(m.StarterPack) == 0 {
		return fmt.Errorf("starter pack must not be empty")
	}

	check := func(table string, ids []int64) error {
		for _, id := range ids {
			if id <= 0 {
				return fmt.Errorf("%s: folder ID %d must be positive", table, id)
			}
		}
		return nil
	}

	if err := check("starter_pack", m.StarterPack); err != nil {
		return err
	}
	for key, ids := range m.Roles {
		if err := check("roles."+key, ids); err != nil {
			return err
		}
	}
	for key, ids := range m.Industries {
		if err := check("industries."+key, ids); err != nil {
			return err
		}
	}
	for key, ids := range m.Seniorities {
		if err := check("seniorities."+key, ids); err != nil {
			return err
		}
	}
	for key, ids := range m.Interests {
		if err := check("interests."+key, ids); err != nil {
			return err
		}
	}

	return nil
}

// AllFolderIDs returns the deduplicated set of folder IDs referenced by any
// table. Used at startup to log catalog coverage.
func (m *Mapping) AllFolderIDs() []int64 {
	seen := make(map[int64]bool)
	add := func(ids []int64) {
		for _, id := range ids {
			seen[id] = true
		}
	}
	add(m.StarterPack)
	for _, ids := range m.Roles {
		add(ids)
	}
	for _, ids := range m.Industries {
		add(ids)
	}
	for _, ids := range m.Seniorities {
		add(ids)
	}
	for _, ids := range m.Interests {
		add(ids)
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}
