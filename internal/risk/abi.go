package risk

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI is the set of function names a contract interface declares
type ABI struct {
	Functions []string `json:"functions"`
}

// NewABI builds an ABI from function names
func NewABI(functions ...string) ABI {
	return ABI{Functions: functions}
}

// ParseABI reads an ABI JSON document. It never fails: input that cannot be
// read as an ABI yields an empty set.
func ParseABI(raw string) ABI {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ABI{}
	}

	if parsed, err := abi.JSON(strings.NewReader(raw)); err == nil {
		names := make([]string, 0, len(parsed.Methods))
		for _, method := range parsed.Methods {
			names = append(names, method.RawName)
		}
		sort.Strings(names)
		return ABI{Functions: names}
	}

	// go-ethereum rejects entries with types it cannot resolve; fall back to
	// reading just type and name so one odd entry does not hide the rest.
	var entries []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return ABI{}
	}

	names := []string{}
	for _, entry := range entries {
		if entry.Type == "function" {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return ABI{Functions: names}
}

// FunctionCount is the number of function entries
func (a ABI) FunctionCount() int {
	return len(a.Functions)
}

// hasFunctionContaining reports whether any function name contains one of subs
func (a ABI) hasFunctionContaining(subs ...string) bool {
	for _, name := range a.Functions {
		for _, sub := range subs {
			if strings.Contains(name, sub) {
				return true
			}
		}
	}
	return false
}
