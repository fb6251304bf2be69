package explorer

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/liamashdown/cryptoguard/internal/risk"
)

// ToRiskTransactions converts explorer transactions for the wallet scorer. Fields that
// fail to parse become zero values.
func ToRiskTransactions(txs []Transaction) []risk.Transaction {
	out := make([]risk.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, risk.Transaction{
			Hash:      tx.Hash,
			From:      tx.From,
			To:        tx.To,
			Value:     parseBig(tx.Value),
			GasPrice:  parseBig(tx.GasPrice),
			Timestamp: parseUnix(tx.TimeStamp),
			Failed:    tx.IsError == "1",
		})
	}
	return out
}

// ToRiskTokenTransfers converts explorer token transfers for the wallet scorer
func ToRiskTokenTransfers(transfers []TokenTransfer) []risk.TokenTransfer {
	out := make([]risk.TokenTransfer, 0, len(transfers))
	for _, tr := range transfers {
		decimals, _ := strconv.Atoi(tr.TokenDecimal)
		out = append(out, risk.TokenTransfer{
			Hash:            tr.Hash,
			From:            tr.From,
			To:              tr.To,
			ContractAddress: tr.ContractAddress,
			TokenSymbol:     tr.TokenSymbol,
			Value:           parseBig(tr.Value),
			Decimals:        decimals,
			Timestamp:       parseUnix(tr.TimeStamp),
		})
	}
	return out
}

func parseBig(s string) *big.Int {
	n, ok := math.ParseBig256(s)
	if !ok {
		return new(big.Int)
	}
	return n
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
