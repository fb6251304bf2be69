package explorer

import (
	"encoding/json"
	"fmt"
)

// Response is the envelope every Etherscan-compatible endpoint returns
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// SourceCode is one entry of a getsourcecode result
type SourceCode struct {
	SourceCode       string `json:"SourceCode"`
	ABI              string `json:"ABI"`
	ContractName     string `json:"ContractName"`
	CompilerVersion  string `json:"CompilerVersion"`
	OptimizationUsed string `json:"OptimizationUsed"`
	LicenseType      string `json:"LicenseType"`
	Proxy            string `json:"Proxy"`
	Implementation   string `json:"Implementation"`
}

// Transaction is one entry of a txlist result. Numeric fields arrive as
// decimal strings.
type Transaction struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Gas         string `json:"gas"`
	GasPrice    string `json:"gasPrice"`
	IsError     string `json:"isError"`
}

// TokenTransfer is one entry of a tokentx result
type TokenTransfer struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	Value           string `json:"value"`
}

// BlockRange bounds a txlist query
type BlockRange struct {
	Start int64
	End   int64
}

// APIError is an error reported inside a well-formed explorer response
type APIError struct {
	Action  string
	Message string
	Result  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("explorer %s: %s: %s", e.Action, e.Message, e.Result)
}
