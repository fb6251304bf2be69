package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainConfig describes one EVM chain and the explorer that indexes it
type ChainConfig struct {
	Name         string   `yaml:"name"`
	ChainID      int      `yaml:"chain_id"`
	NativeSymbol string   `yaml:"native_symbol"`
	Explorer     Explorer `yaml:"explorer"`
}

// Explorer is an Etherscan-compatible API endpoint
type Explorer struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type chainsFile struct {
	Chains map[string]ChainConfig `yaml:"chains"`
}

const etherscanV2URL = "https://api.etherscan.io/v2/api"

// DefaultChains returns the built-in chain table
func DefaultChains() map[string]ChainConfig {
	return map[string]ChainConfig{
		"bsc": {
			Name:         "BNB Smart Chain",
			ChainID:      56,
			NativeSymbol: "BNB",
			Explorer:     Explorer{BaseURL: etherscanV2URL},
		},
		"ethereum": {
			Name:         "Ethereum",
			ChainID:      1,
			NativeSymbol: "ETH",
			Explorer:     Explorer{BaseURL: etherscanV2URL},
		},
		"polygon": {
			Name:         "Polygon",
			ChainID:      137,
			NativeSymbol: "POL",
			Explorer:     Explorer{BaseURL: etherscanV2URL},
		},
	}
}

// LoadChainsFile reads chain definitions from a YAML file
func LoadChainsFile(path string) (map[string]ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains file: %w", err)
	}

	var file chainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse chains file: %w", err)
	}

	chains := make(map[string]ChainConfig, len(file.Chains))
	for key, chain := range file.Chains {
		key = strings.ToLower(strings.TrimSpace(key))
		if chain.Explorer.BaseURL == "" {
			return nil, fmt.Errorf("chain %s: explorer.base_url is required", key)
		}
		if chain.Name == "" {
			chain.Name = key
		}
		chains[key] = chain
	}
	return chains, nil
}
