// Package scorer measures how well a resume covers a job's keywords and requirements.
package scorer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nikogura/resumelm/pkg/model"
)

//nolint:gochecknoglobals // compiled once
var tokenPattern = regexp.MustCompile(`[a-z0-9+#]+(?:\.[a-z0-9+#]+)*`)

// Coverage is the matched and missing items of one rule.
type Coverage struct {
	Score   int      `json:"score"`
	Matched []string `json:"matched"`
	Missing []string `json:"missing"`
}

// Report is the match of one resume against one job.
type Report struct {
	Overall      int      `json:"overall"`
	Keywords     Coverage `json:"keywords"`
	Requirements Coverage `json:"requirements"`
	RoleMatch    bool     `json:"role_match"`
	Lessons      []string `json:"lessons"`
}

// Scorer calculates match reports.
type Scorer struct{}

// NewScorer creates a new scorer instance.
func NewScorer() (scorer *Scorer) {
	scorer = &Scorer{}
	return scorer
}

// Score matches a resume against a job. Nothing to match counts as full coverage.
func (s *Scorer) Score(resume model.Resume, job model.Job) (report Report) {
	text := " " + strings.Join(tokens(resumeText(resume)), " ") + " "
	words := map[string]bool{}
	for _, w := range strings.Fields(text) {
		words[w] = true
	}

	report.Keywords = s.keywordCoverage(text, job.Keywords)
	report.Requirements = s.requirementCoverage(words, job.Requirements)
	report.RoleMatch = s.roleMatch(resume, job)

	role := 0
	if report.RoleMatch {
		role = 100
	}

	report.Overall = (report.Keywords.Score*ScoringRules[RuleKeywordCoverage].Weight +
		report.Requirements.Score*ScoringRules[RuleRequirementCoverage].Weight +
		role*ScoringRules[RuleTargetRole].Weight) / 100

	report.Lessons = s.ExtractLessons(report)

	return report
}

func (s *Scorer) keywordCoverage(text string, keywords []string) (c Coverage) {
	c = Coverage{Matched: []string{}, Missing: []string{}}

	seen := map[string]bool{}
	for _, kw := range keywords {
		norm := strings.Join(tokens(kw), " ")
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true

		if strings.Contains(text, " "+norm+" ") {
			c.Matched = append(c.Matched, kw)
		} else {
			c.Missing = append(c.Missing, kw)
		}
	}

	c.Score = percent(len(c.Matched), len(c.Matched)+len(c.Missing))
	return c
}

func (s *Scorer) requirementCoverage(words map[string]bool, requirements []string) (c Coverage) {
	c = Coverage{Matched: []string{}, Missing: []string{}}

	for _, req := range requirements {
		significant := significantWords(req)
		if len(significant) == 0 {
			continue
		}

		found := 0
		for _, w := range significant {
			if words[w] {
				found++
			}
		}

		if float64(found)/float64(len(significant)) >= requirementThreshold {
			c.Matched = append(c.Matched, req)
		} else {
			c.Missing = append(c.Missing, req)
		}
	}

	c.Score = percent(len(c.Matched), len(c.Matched)+len(c.Missing))
	return c
}

func (s *Scorer) roleMatch(resume model.Resume, job model.Job) (ok bool) {
	title := significantWords(job.PositionTitle)
	if len(title) == 0 {
		ok = true
		return ok
	}

	role := map[string]bool{}
	for _, w := range tokens(resume.TargetRole + " " + resume.Name) {
		role[w] = true
	}

	for _, w := range title {
		if role[w] {
			ok = true
			return ok
		}
	}
	return ok
}

// ExtractLessons turns a report into short suggestions.
func (s *Scorer) ExtractLessons(report Report) (lessons []string) {
	lessons = []string{}

	if len(report.Keywords.Missing) > 0 {
		missing := append([]string(nil), report.Keywords.Missing...)
		sort.Strings(missing)
		lessons = append(lessons, "Missing job keywords: "+strings.Join(missing, ", "))
	}

	if len(report.Requirements.Missing) > 0 {
		lessons = append(lessons, "Requirements not reflected in the resume: "+strings.Join(report.Requirements.Missing, "; "))
	}

	if !report.RoleMatch {
		lessons = append(lessons, "Target role does not match the position title")
	}

	return lessons
}

// resumeText flattens everything a reader would see in the resume body.
func resumeText(r model.Resume) (text string) {
	var parts []string
	parts = append(parts, r.TargetRole)

	for _, w := range r.WorkExperience {
		parts = append(parts, w.Position, w.Company)
		parts = append(parts, w.Description...)
		parts = append(parts, w.Technologies...)
	}
	for _, e := range r.Education {
		parts = append(parts, e.Degree, e.Field, e.School)
		parts = append(parts, e.Achievements...)
	}
	for _, sk := range r.Skills {
		parts = append(parts, sk.Category)
		parts = append(parts, sk.Items...)
	}
	for _, p := range r.Projects {
		parts = append(parts, p.Name)
		parts = append(parts, p.Description...)
		parts = append(parts, p.Technologies...)
	}

	text = strings.Join(parts, "\n")
	return text
}

func tokens(s string) (out []string) {
	out = tokenPattern.FindAllString(strings.ToLower(s), -1)
	return out
}

func significantWords(s string) (out []string) {
	for _, w := range tokens(s) {
		if len(w) < 3 && !strings.ContainsAny(w, "+#") || stopWords[w] {
			continue
		}
		// counts like "5+" or "10"
		if w[0] >= '0' && w[0] <= '9' {
			continue
		}
		out = append(out, w)
	}
	return out
}

func percent(n, total int) (p int) {
	if total == 0 {
		p = 100
		return p
	}
	p = n * 100 / total
	return p
}
