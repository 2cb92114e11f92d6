package scorer

// Rule is one weighted part of the match score.
type Rule struct {
	Name        string
	Description string
	Weight      int // Share of the overall score, out of 100
}

// Rule names.
const (
	RuleKeywordCoverage     = "KEYWORD_COVERAGE"
	RuleRequirementCoverage = "REQUIREMENT_COVERAGE"
	RuleTargetRole          = "TARGET_ROLE_MATCH"
)

//nolint:gochecknoglobals // Scoring configuration constants
var ScoringRules = map[string]Rule{
	RuleKeywordCoverage: {
		Name:        RuleKeywordCoverage,
		Description: "Job keywords that appear somewhere in the resume",
		Weight:      60,
	},
	RuleRequirementCoverage: {
		Name:        RuleRequirementCoverage,
		Description: "Job requirements whose significant words mostly appear in the resume",
		Weight:      30,
	},
	RuleTargetRole: {
		Name:        RuleTargetRole,
		Description: "Resume target role shares a word with the position title",
		Weight:      10,
	},
}

// requirementThreshold is the share of a requirement's significant words that must appear.
const requirementThreshold = 0.5

//nolint:gochecknoglobals // Scoring configuration constants
var stopWords = map[string]bool{
	"and": true, "the": true, "with": true, "for": true, "from": true, "that": true,
	"this": true, "have": true, "has": true, "are": true, "our": true, "your": true,
	"you": true, "will": true, "years": true, "year": true, "experience": true,
	"strong": true, "ability": true, "work": true, "working": true, "knowledge": true,
	"understanding": true, "plus": true, "including": true, "using": true, "such": true,
	"senior": true, "junior": true, "staff": true, "lead": true, "principal": true,
}
