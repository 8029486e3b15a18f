package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// Subject compatibility levels.
const (
	SubjectExact    = 1.0
	SubjectFamily   = 0.7
	SubjectBaseline = 0.3
)

// ScoringWeights are the multipliers applied to each sub-score.
type ScoringWeights struct {
	Availability float64 `json:"availability"`
	Workload     float64 `json:"workload"`
	Subject      float64 `json:"subject"`
	Attendance   float64 `json:"attendance"`
}

// Sum returns the total weight mass.
func (w ScoringWeights) Sum() float64 {
	return w.Availability + w.Workload + w.Subject + w.Attendance
}

// ScoringConfig is the immutable tuning passed to a CandidateScorer.
type ScoringConfig struct {
	Weights           ScoringWeights
	WorkloadCeiling   float64
	DefaultAttendance float64
}

// DefaultScoringConfig returns the production weighting.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: ScoringWeights{
			Availability: 0.40,
			Workload:     0.25,
			Subject:      0.20,
			Attendance:   0.15,
		},
		WorkloadCeiling:   35,
		DefaultAttendance: 0.8,
	}
}

// ScoringConfigFrom maps application configuration onto a ScoringConfig.
func ScoringConfigFrom(cfg config.SubstitutionConfig) ScoringConfig {
	return ScoringConfig{
		Weights: ScoringWeights{
			Availability: cfg.WeightAvailability,
			Workload:     cfg.WeightWorkload,
			Subject:      cfg.WeightSubject,
			Attendance:   cfg.WeightAttendance,
		},
		WorkloadCeiling:   cfg.WorkloadCeiling,
		DefaultAttendance: cfg.DefaultAttendance,
	}
}

// Validate rejects negative weights, a zero weight sum and a non-positive ceiling.
func (c ScoringConfig) Validate() error {
	w := c.Weights
	if w.Availability < 0 || w.Workload < 0 || w.Subject < 0 || w.Attendance < 0 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "weights must not be negative")
	}
	if w.Sum() <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "at least one weight must be positive")
	}
	if c.WorkloadCeiling <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "workload ceiling must be positive")
	}
	if c.DefaultAttendance < 0 || c.DefaultAttendance > 1 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "default attendance must be within [0,1]")
	}
	return nil
}

// SubjectCompatibilityClassifier rates how well a teacher's subject covers the required one.
type SubjectCompatibilityClassifier interface {
	Compatibility(teacherSubject, requiredSubject string) float64
}

// ClassifierFunc adapts a function into a SubjectCompatibilityClassifier.
type ClassifierFunc func(teacherSubject, requiredSubject string) float64

// Compatibility implements SubjectCompatibilityClassifier.
func (f ClassifierFunc) Compatibility(teacherSubject, requiredSubject string) float64 {
	return clamp01(f(teacherSubject, requiredSubject))
}

// ExactMatchClassifier only distinguishes identical subjects from everything else.
type ExactMatchClassifier struct {
	Baseline float64
}

// Compatibility implements SubjectCompatibilityClassifier.
func (c ExactMatchClassifier) Compatibility(teacherSubject, requiredSubject string) float64 {
	if sameSubject(teacherSubject, requiredSubject) {
		return SubjectExact
	}
	return clamp01(c.Baseline)
}

// FamilyTableClassifier groups related subjects into families.
type FamilyTableClassifier struct {
	members  map[string]string
	ordered  []familyMember
	families []string
}

type familyMember struct {
	term   string
	family string
}

// DefaultSubjectFamilies is the built-in family table.
func DefaultSubjectFamilies() map[string][]string {
	return map[string][]string{
		"mathematics":    {"math", "maths", "algebra", "geometry", "calculus", "statistics", "trigonometry"},
		"science":        {"physics", "chemistry", "biology", "earth science", "natural science"},
		"languages":      {"english", "literature", "language", "grammar", "indonesian", "french", "german", "spanish"},
		"social studies": {"history", "geography", "economics", "sociology", "civics", "political science"},
		"computing":      {"computer science", "informatics", "programming", "information technology", "ict"},
		"arts":           {"art", "fine arts", "music", "drawing", "painting", "dance", "theatre"},
	}
}

// NewFamilyTableClassifier indexes the families. Family names are members of themselves.
func NewFamilyTableClassifier(families map[string][]string) *FamilyTableClassifier {
	c := &FamilyTableClassifier{members: make(map[string]string)}
	for family, terms := range families {
		name := normalizeSubject(family)
		if name == "" {
			continue
		}
		c.families = append(c.families, name)
		c.add(name, name)
		for _, term := range terms {
			c.add(normalizeSubject(term), name)
		}
	}
	sort.Strings(c.families)
	// longest phrases first so "earth science" wins over "science"
	sort.SliceStable(c.ordered, func(i, j int) bool {
		if len(c.ordered[i].term) != len(c.ordered[j].term) {
			return len(c.ordered[i].term) > len(c.ordered[j].term)
		}
		return c.ordered[i].term < c.ordered[j].term
	})
	return c
}

func (c *FamilyTableClassifier) add(term, family string) {
	if term == "" {
		return
	}
	if _, exists := c.members[term]; exists {
		return
	}
	c.members[term] = family
	c.ordered = append(c.ordered, familyMember{term: term, family: family})
}

// Families lists the configured family names.
func (c *FamilyTableClassifier) Families() []string {
	return append([]string(nil), c.families...)
}

// FamilyOf returns the family a subject belongs to, matching whole words.
func (c *FamilyTableClassifier) FamilyOf(subject string) (string, bool) {
	s := normalizeSubject(subject)
	if s == "" {
		return "", false
	}
	if family, ok := c.members[s]; ok {
		return family, true
	}
	padded := " " + s + " "
	for _, m := range c.ordered {
		if strings.Contains(padded, " "+m.term+" ") {
			return m.family, true
		}
	}
	return "", false
}

// Compatibility implements SubjectCompatibilityClassifier.
func (c *FamilyTableClassifier) Compatibility(teacherSubject, requiredSubject string) float64 {
	if sameSubject(teacherSubject, requiredSubject) {
		return SubjectExact
	}
	tf, ok := c.FamilyOf(teacherSubject)
	if !ok {
		return SubjectBaseline
	}
	rf, ok := c.FamilyOf(requiredSubject)
	if ok && tf == rf {
		return SubjectFamily
	}
	return SubjectBaseline
}

// ParseSubjectFamilies reads "family:a|b;family2:c" into a family table.
func ParseSubjectFamilies(raw string) (map[string][]string, error) {
	families := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, members, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid subject family entry %q", entry)
		}
		for _, member := range strings.Split(members, "|") {
			if member = strings.TrimSpace(member); member != "" {
				families[name] = append(families[name], member)
			}
		}
		if _, exists := families[name]; !exists {
			families[name] = nil
		}
	}
	if len(families) == 0 {
		return nil, fmt.Errorf("no subject families defined")
	}
	return families, nil
}

// CandidateInput is the state a candidate is scored on.
type CandidateInput struct {
	Teacher           models.Teacher
	Availability      float64
	WeeklyCommitments int
}

// CandidateScorer combines sub-scores into a weighted ranking score.
type CandidateScorer struct {
	config     ScoringConfig
	classifier SubjectCompatibilityClassifier
}

// NewCandidateScorer validates the configuration. A nil classifier falls back to
// the default family table.
func NewCandidateScorer(cfg ScoringConfig, classifier SubjectCompatibilityClassifier) (*CandidateScorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		classifier = NewFamilyTableClassifier(DefaultSubjectFamilies())
	}
	return &CandidateScorer{config: cfg, classifier: classifier}, nil
}

// Config returns the scorer configuration.
func (s *CandidateScorer) Config() ScoringConfig {
	return s.config
}

// Score is a pure function of its inputs.
func (s *CandidateScorer) Score(input CandidateInput, vacancy models.Vacancy) dto.ScoreBreakdown {
	breakdown := dto.ScoreBreakdown{
		Availability: clamp01(input.Availability),
		Workload:     s.WorkloadScore(input.WeeklyCommitments),
		Subject:      s.SubjectScore(input.Teacher.Subject, vacancy.Subject),
		Attendance:   s.AttendanceScore(input.Teacher.AttendancePercentage),
	}
	w := s.config.Weights
	breakdown.Total = breakdown.Availability*w.Availability +
		breakdown.Workload*w.Workload +
		breakdown.Subject*w.Subject +
		breakdown.Attendance*w.Attendance
	return breakdown
}

// WorkloadScore is max(0, 1 - commitments/ceiling).
func (s *CandidateScorer) WorkloadScore(commitments int) float64 {
	if commitments <= 0 {
		return 1
	}
	return math.Max(0, 1-float64(commitments)/s.config.WorkloadCeiling)
}

// SubjectScore delegates to the configured classifier.
func (s *CandidateScorer) SubjectScore(teacherSubject, requiredSubject string) float64 {
	return s.classifier.Compatibility(teacherSubject, requiredSubject)
}

// AttendanceScore maps a 0-100 percentage onto [0,1], defaulting when unknown.
func (s *CandidateScorer) AttendanceScore(percentage *float64) float64 {
	if percentage == nil || math.IsNaN(*percentage) {
		return s.config.DefaultAttendance
	}
	return clamp01(*percentage / 100)
}

func normalizeSubject(subject string) string {
	return strings.Join(strings.Fields(strings.ToLower(subject)), " ")
}

func sameSubject(a, b string) bool {
	na, nb := normalizeSubject(a), normalizeSubject(b)
	return na != "" && na == nb
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
