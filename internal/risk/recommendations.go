package risk

// Recommendation texts, emitted in rule order
const (
	RecommendVerify        = "Verify the contract source code on the block explorer so users can audit it"
	RecommendFixCritical   = "URGENT: fix critical vulnerabilities before deploying or interacting with this contract"
	RecommendFixHigh       = "Address high-severity vulnerabilities to prevent potential exploits"
	RecommendPause         = "Consider adding an emergency pause mechanism to contain incidents"
	RecommendGas           = "Optimize gas usage with calldata parameters, unchecked arithmetic or assembly where safe"
	RecommendDocumentation = "Improve code quality with documentation, events and explicit error handling"
	RecommendGovernance    = "Move privileged owner functions behind a multisig or governance process"
)

type recommendationRule struct {
	applies func(VulnerabilityCounts, FeatureVector) bool
	text    string
}

var recommendationRules = []recommendationRule{
	{func(_ VulnerabilityCounts, f FeatureVector) bool { return !f.Verified }, RecommendVerify},
	{func(v VulnerabilityCounts, _ FeatureVector) bool { return v.Critical > 0 }, RecommendFixCritical},
	{func(v VulnerabilityCounts, _ FeatureVector) bool { return v.High > 0 }, RecommendFixHigh},
	{func(v VulnerabilityCounts, f FeatureVector) bool { return v.Medium > 2 && !f.Pausable }, RecommendPause},
	{func(_ VulnerabilityCounts, f FeatureVector) bool { return f.GasOptimization == RatingPoor }, RecommendGas},
	{func(_ VulnerabilityCounts, f FeatureVector) bool { return f.CodeQuality == RatingPoor }, RecommendDocumentation},
	{func(_ VulnerabilityCounts, f FeatureVector) bool { return f.HasOwner && !f.Pausable }, RecommendGovernance},
}

// Recommend evaluates the fixed rule list. Output order always follows rule
// order, whichever subset fires.
func Recommend(v VulnerabilityCounts, f FeatureVector) []string {
	out := []string{}
	for _, rule := range recommendationRules {
		if rule.applies(v, f) {
			out = append(out, rule.text)
		}
	}
	return out
}
