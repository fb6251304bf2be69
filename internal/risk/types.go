// Package risk implements the heuristic contract and wallet risk scoring.
//
// Contracts flow through three stages: feature extraction from source text
// and ABI, lexical vulnerability detection, and a weighted score that maps to
// a letter grade plus recommendations. Wallets are scored from balance,
// activity and token diversity. Every function here is pure; fetching data is
// the caller's job.
package risk

// Complexity buckets a contract by the number of functions in its ABI
type Complexity string

const (
	ComplexityLow    Complexity = "Low"
	ComplexityMedium Complexity = "Medium"
	ComplexityHigh   Complexity = "High"
)

// Rating is used for gas optimization and code quality
type Rating string

const (
	RatingPoor      Rating = "Poor"
	RatingFair      Rating = "Fair"
	RatingGood      Rating = "Good"
	RatingExcellent Rating = "Excellent"
)

// SecurityLevel summarizes access-control hygiene found in source.
// ExtractFeatures only emits Good or Fair; the other levels are unused.
type SecurityLevel string

const (
	SecurityVulnerable SecurityLevel = "Vulnerable"
	SecurityWeak       SecurityLevel = "Weak"
	SecurityFair       SecurityLevel = "Fair"
	SecurityGood       SecurityLevel = "Good"
	SecurityExcellent  SecurityLevel = "Excellent"
)

// Grade is the letter grade derived from a score
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeDPlus Grade = "D+"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// SourceArtifact is the source code and name reported for an address
type SourceArtifact struct {
	SourceCode   string `json:"sourceCode"`
	ContractName string `json:"contractName"`
	Verified     bool   `json:"verified"`
}

// NewSourceArtifact marks the artifact verified when source text is present
func NewSourceArtifact(sourceCode, contractName string) SourceArtifact {
	return SourceArtifact{
		SourceCode:   sourceCode,
		ContractName: contractName,
		Verified:     sourceCode != "",
	}
}

// FeatureVector holds the properties extracted from one contract.
// It is built once by ExtractFeatures and treated as a value afterwards.
type FeatureVector struct {
	Verified        bool          `json:"verified"`
	Proxy           bool          `json:"proxy"`
	Mintable        bool          `json:"mintable"`
	Pausable        bool          `json:"pausable"`
	HasOwner        bool          `json:"hasOwner"`
	Complexity      Complexity    `json:"complexity"`
	GasOptimization Rating        `json:"gasOptimization"`
	CodeQuality     Rating        `json:"codeQuality"`
	Security        SecurityLevel `json:"security"`
}

// VulnerabilityCounts tallies pattern matches per severity band
type VulnerabilityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the number of findings across all bands
func (v VulnerabilityCounts) Total() int {
	return nonNegative(v.Critical) + nonNegative(v.High) + nonNegative(v.Medium) + nonNegative(v.Low)
}

// ScoreResult pairs a score in [0,100] with its grade
type ScoreResult struct {
	Score int   `json:"score"`
	Grade Grade `json:"grade"`
}

// ContractAssessment is the full output of the contract pipeline
type ContractAssessment struct {
	Features        FeatureVector       `json:"features"`
	Vulnerabilities VulnerabilityCounts `json:"vulnerabilities"`
	ScoreResult
	Recommendations []string `json:"recommendations"`
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
