package risk

import "strings"

// DetectVulnerabilities runs independent lexical checks over source text.
// Each firing check adds one to exactly one band. This is a coarse signal,
// not a parser: it has no notion of scope or control flow.
func DetectVulnerabilities(source string) VulnerabilityCounts {
	has := func(sub string) bool { return strings.Contains(source, sub) }

	var v VulnerabilityCounts

	// critical
	if has("selfdestruct") {
		v.Critical++
	}
	if has("delegatecall") && !has("require") {
		v.Critical++
	}
	if has("tx.origin") {
		v.Critical++
	}

	// high
	if has("send(") && !has("require") {
		v.High++
	}
	if has("call.value") || has("call{value:") {
		v.High++
	}
	if !has("ReentrancyGuard") && has("external") {
		v.High++
	}

	// medium
	if !has("SafeMath") && has("uint256") {
		v.Medium++
	}
	if has("block.timestamp") || has("now") {
		v.Medium++
	}
	if !has("require") && has("assert") {
		v.Medium++
	}

	// low
	if !has("pragma solidity") {
		v.Low++
	}
	if has("public") && !has("view") {
		v.Low++
	}

	return v
}
