package risk

import "strings"

// ExtractFeatures derives the feature vector for a contract from its source
// text and ABI. All checks are literal, case-sensitive substring matches.
func ExtractFeatures(source string, contractABI ABI) FeatureVector {
	verified := source != ""

	return FeatureVector{
		Verified: verified,
		Proxy: containsAny(source, "proxy", "Proxy") ||
			contractABI.hasFunctionContaining("upgrade", "implementation"),
		Mintable: contractABI.hasFunctionContaining("mint") ||
			strings.Contains(source, "_mint"),
		Pausable: contractABI.hasFunctionContaining("pause") ||
			strings.Contains(source, "pause"),
		HasOwner: contractABI.hasFunctionContaining("owner", "Owner") ||
			containsAny(source, "onlyOwner", "Ownable"),
		Complexity:      complexityFor(contractABI.FunctionCount()),
		GasOptimization: gasOptimizationFor(source),
		CodeQuality:     codeQualityFor(source, verified),
		Security:        securityFor(source),
	}
}

func complexityFor(functionCount int) Complexity {
	switch {
	case functionCount > 20:
		return ComplexityHigh
	case functionCount > 10:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// gasOptimizationFor only ever yields Good or Fair; Poor and Excellent are
// reserved for a detector that can measure gas usage.
func gasOptimizationFor(source string) Rating {
	if containsAny(source, "assembly", "unchecked", "calldata") {
		return RatingGood
	}
	return RatingFair
}

func codeQualityFor(source string, verified bool) Rating {
	points := 0
	if containsAny(source, "//", "/*") {
		points++
	}
	if containsAny(source, "event ", "emit ") {
		points++
	}
	if strings.Contains(source, "modifier ") {
		points++
	}
	if verified {
		points++
	}

	switch {
	case points >= 3:
		return RatingGood
	case points >= 2:
		return RatingFair
	default:
		return RatingPoor
	}
}

func securityFor(source string) SecurityLevel {
	if containsAll(source, "require", "modifier", "onlyOwner") {
		return SecurityGood
	}
	return SecurityFair
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
