package risk

const (
	maxScore = 100
	minScore = 0

	criticalPenalty = 25
	highPenalty     = 15
	mediumPenalty   = 10
	lowPenalty      = 5

	verifiedBonus    = 10
	securityBonus    = 10
	codeQualityBonus = 5
)

// gradeThresholds is ordered from best to worst
var gradeThresholds = []struct {
	min   int
	grade Grade
}{
	{95, GradeAPlus},
	{90, GradeA},
	{85, GradeBPlus},
	{80, GradeB},
	{75, GradeCPlus},
	{70, GradeC},
	{65, GradeDPlus},
	{60, GradeD},
}

// Score combines vulnerability counts and features into a value in [0,100].
// A single critical finding costs as much as every bonus combined.
func Score(v VulnerabilityCounts, f FeatureVector) int {
	score := maxScore
	score -= criticalPenalty * nonNegative(v.Critical)
	score -= highPenalty * nonNegative(v.High)
	score -= mediumPenalty * nonNegative(v.Medium)
	score -= lowPenalty * nonNegative(v.Low)

	if f.Verified {
		score += verifiedBonus
	}
	if f.Security == SecurityGood {
		score += securityBonus
	}
	if f.CodeQuality == RatingGood {
		score += codeQualityBonus
	}

	return clamp(score, minScore, maxScore)
}

// GradeFor maps a score to its letter grade
func GradeFor(score int) Grade {
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return GradeF
}

// Evaluate scores and grades in one step
func Evaluate(v VulnerabilityCounts, f FeatureVector) ScoreResult {
	score := Score(v, f)
	return ScoreResult{Score: score, Grade: GradeFor(score)}
}

// AssessContract runs the whole contract pipeline over source and ABI
func AssessContract(source string, contractABI ABI) ContractAssessment {
	features := ExtractFeatures(source, contractABI)
	vulns := DetectVulnerabilities(source)

	return ContractAssessment{
		Features:        features,
		Vulnerabilities: vulns,
		ScoreResult:     Evaluate(vulns, features),
		Recommendations: Recommend(vulns, features),
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
