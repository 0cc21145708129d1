package recommend

import (
	"sort"
	"strings"
)

// Tier weights. A folder referenced by several tiers accumulates the sum of
// the matched contributions.
const (
	// WeightStarter keeps starter-pack folders above any threshold change.
	WeightStarter = 100

	// WeightRole is the professional-role tier contribution.
	WeightRole = 50

	// WeightIndustry is the industry tier contribution.
	WeightIndustry = 30

	// WeightSeniority is the seniority tier contribution.
	WeightSeniority = 25

	// WeightInterest is applied once per matched interest.
	WeightInterest = 15

	// InclusionThreshold is the minimum accumulated score for a folder to be
	// recommended. Starter-pack folders are included regardless.
	InclusionThreshold = 20
)

// otherPrefix marks free-text answers that have no mapping-table entry.
const otherPrefix = "other:"

// Profile is the cleaned onboarding profile the engine scores against.
// Empty fields contribute nothing; the engine never fails on missing data.
type Profile struct {
	JobType      string
	JobIndustry  string
	JobSeniority string
	Interests    []string
}

// Explanation is the raw per-tier attribution of a recommendation, before the
// inclusion filter. Returned to clients for transparency and used in tests.
type Explanation struct {
	StarterPack      []int64       `json:"starter_pack"`
	ProfessionalRole []int64       `json:"professional_role"`
	Industry         []int64       `json:"industry"`
	Seniority        []int64       `json:"seniority"`
	Interests        []int64       `json:"interests"`
	Scores           map[int64]int `json:"scores"`
}

// Engine scores user profiles against the mapping tables. It is a pure,
// stateless computation and safe for unlimited concurrent use.
type Engine struct {
	mapping *Mapping
}

// NewEngine creates an engine over the given tables.
// If mapping is nil, the built-in defaults are used.
func NewEngine(mapping *Mapping) *Engine {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	return &Engine{mapping: mapping}
}

// Mapping returns the engine's tables.
func (e *Engine) Mapping() *Mapping {
	return e.mapping
}

// CleanFieldValue normalizes a single-value profile field. Free-text
// "other:" answers have no table entry and are treated as unset.
func CleanFieldValue(value string) string {
	if strings.HasPrefix(value, otherPrefix) {
		return ""
	}
	return value
}

// CleanInterest strips the "other:" prefix from an interest so the remainder
// can still be looked up; absent keys simply contribute nothing.
func CleanInterest(value string) string {
	return strings.TrimPrefix(value, otherPrefix)
}

// CleanProfile applies the field-cleaning rules to a raw profile.
func CleanProfile(p Profile) Profile {
	clean := Profile{
		JobType:      CleanFieldValue(p.JobType),
		JobIndustry:  CleanFieldValue(p.JobIndustry),
		JobSeniority: CleanFieldValue(p.JobSeniority),
	}
	for _, interest := range p.Interests {
		clean.Interests = append(clean.Interests, CleanInterest(interest))
	}
	return clean
}

// Recommend returns the folder IDs whose accumulated score meets the
// inclusion threshold, plus every starter-pack folder. The result is ordered
// by descending score, ties broken by ascending folder ID, so identical
// inputs always produce identical output.
func (e *Engine) Recommend(p Profile) []int64 {
	scores := e.score(p)

	starter := make(map[int64]bool, len(e.mapping.StarterPack))
	for _, id := range e.mapping.StarterPack {
		starter[id] = true
	}

	included := make([]int64, 0, len(scores))
	for id, score := range scores {
		if score >= InclusionThreshold || starter[id] {
			included = append(included, id)
		}
	}

	sort.Slice(included, func(i, j int) bool {
		a, b := included[i], included[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return a < b
	})

	return included
}

// Explain returns the per-tier contributing folder lists and the full score
// map, without applying the inclusion filter.
func (e *Engine) Explain(p Profile) Explanation {
	ex := Explanation{
		StarterPack:      append([]int64(nil), e.mapping.StarterPack...),
		ProfessionalRole: []int64{},
		Industry:         []int64{},
		Seniority:        []int64{},
		Interests:        []int64{},
		Scores:           e.score(p),
	}

	if ids, ok := e.mapping.Roles[p.JobType]; ok && p.JobType != "" {
		ex.ProfessionalRole = append([]int64(nil), ids...)
	}
	if ids, ok := e.mapping.Industries[p.JobIndustry]; ok && p.JobIndustry != "" {
		ex.Industry = append([]int64(nil), ids...)
	}
	if ids, ok := e.mapping.Seniorities[p.JobSeniority]; ok && p.JobSeniority != "" {
		ex.Seniority = append([]int64(nil), ids...)
	}

	interestSet := make(map[int64]bool)
	for _, interest := range p.Interests {
		if ids, ok := e.mapping.Interests[CleanInterest(interest)]; ok {
			for _, id := range ids {
				interestSet[id] = true
			}
		}
	}
	for id := range interestSet {
		ex.Interests = append(ex.Interests, id)
	}
	sort.Slice(ex.Interests, func(i, j int) bool { return ex.Interests[i] < ex.Interests[j] })

	return ex
}

// score accumulates the weighted tier contributions for a profile.
func (e *Engine) score(p Profile) map[int64]int {
	scores := make(map[int64]int)

	for _, id := range e.mapping.StarterPack {
		scores[id] += WeightStarter
	}

	if p.JobType != "" {
		for _, id := range e.mapping.Roles[p.JobType] {
			scores[id] += WeightRole
		}
	}
	if p.JobIndustry != "" {
		for _, id := range e.mapping.Industries[p.JobIndustry] {
			scores[id] += WeightIndustry
		}
	}
	if p.JobSeniority != "" {
		for _, id := range e.mapping.Seniorities[p.JobSeniority] {
			scores[id] += WeightSeniority
		}
	}
	for _, interest := range p.Interests {
		for _, id := range e.mapping.Interests[CleanInterest(interest)] {
			scores[id] += WeightInterest
		}
	}

	return scores
}
