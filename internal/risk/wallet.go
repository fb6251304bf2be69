package risk

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/params"
)

// Wallet tags. A wallet can carry any combination of them.
const (
	TagMegaWhale       = "MEGA_WHALE"
	TagWhale           = "WHALE"
	TagHighActivity    = "HIGH_ACTIVITY"
	TagActiveTrader    = "ACTIVE_TRADER"
	TagLargeTransfers  = "LARGE_TRANSFERS"
	TagHighGasBidder   = "HIGH_GAS_BIDDER"
	TagHighFailureRate = "HIGH_FAILURE_RATE"
	TagLowDiversity    = "LOW_DIVERSITY"
	TagNewWallet       = "NEW_WALLET"
)

// Direction of a transaction relative to the analyzed wallet
const (
	DirectionIn   = "in"
	DirectionOut  = "out"
	DirectionSelf = "self"
)

const (
	largeTxNative       = 1000.0
	largeTxWeight       = 5
	largeTxCap          = 30
	lowDiversityMin     = 3
	lowDiversityPenalty = 10

	highGasGwei         = 20.0
	failureRateMinTxs   = 5
	failureRateLimit    = 0.2
	newWalletAge        = 7 * 24 * time.Hour
	activityWindow      = 24 * time.Hour
	topTokenLimit       = 5
	recentActivityLimit = 10
)

var balanceTiers = []struct {
	above  float64
	points int
}{
	{100000, 30},
	{50000, 20},
	{10000, 10},
}

var activityTiers = []struct {
	above  int
	points int
}{
	{50, 25},
	{20, 15},
	{10, 5},
}

// Transaction is a native-currency transaction touching the wallet
type Transaction struct {
	Hash      string
	From      string
	To        string
	Value     *big.Int // wei
	GasPrice  *big.Int // wei
	Timestamp time.Time
	Failed    bool
}

// TokenTransfer is a fungible-token transfer touching the wallet
type TokenTransfer struct {
	Hash            string
	From            string
	To              string
	ContractAddress string
	TokenSymbol     string
	Value           *big.Int // raw units
	Decimals        int
	Timestamp       time.Time
}

// WalletInput is everything the wallet scorer looks at
type WalletInput struct {
	Address        string
	Balance        *big.Int // wei
	Transactions   []Transaction
	TokenTransfers []TokenTransfer
	// Prices maps upper-case token symbols to USD. Missing symbols value at 0.
	Prices map[string]float64
	Now    time.Time
}

// TokenHolding is one entry of a wallet's top tokens
type TokenHolding struct {
	Token           string  `json:"token"`
	ContractAddress string  `json:"contractAddress"`
	Amount          float64 `json:"amount"`
	USDValue        float64 `json:"usdValue"`
	Percentage      float64 `json:"percentage"`
}

// ActivityRecord is one entry of a wallet's recent activity
type ActivityRecord struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Value     float64   `json:"value"`
	Direction string    `json:"direction"`
	Failed    bool      `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// WalletAnalysis is the output of the wallet pipeline
type WalletAnalysis struct {
	RiskScore      int              `json:"riskScore"`
	Tags           []string         `json:"tags"`
	TopTokens      []TokenHolding   `json:"topTokens"`
	RecentActivity []ActivityRecord `json:"recentActivity"`
}

// AnalyzeWallet scores an externally-owned account
func AnalyzeWallet(in WalletInput) WalletAnalysis {
	balance := WeiToNative(in.Balance)
	recent := countSince(in.Transactions, in.Now.Add(-activityWindow))
	large := countLarge(in.Transactions)
	uniqueTokens := countTokenContracts(in.TokenTransfers)

	score := 0
	for _, tier := range balanceTiers {
		if balance > tier.above {
			score += tier.points
			break
		}
	}
	for _, tier := range activityTiers {
		if recent > tier.above {
			score += tier.points
			break
		}
	}
	score += min(large*largeTxWeight, largeTxCap)
	if uniqueTokens < lowDiversityMin {
		score += lowDiversityPenalty
	}

	return WalletAnalysis{
		RiskScore:      clamp(score, minScore, maxScore),
		Tags:           walletTags(in, balance, recent, large, uniqueTokens),
		TopTokens:      topTokens(in),
		RecentActivity: recentActivity(in),
	}
}

func walletTags(in WalletInput, balance float64, recent, large, uniqueTokens int) []string {
	set := map[string]bool{
		TagMegaWhale:      balance > 100000,
		TagWhale:          balance > 10000,
		TagHighActivity:   recent > 50,
		TagActiveTrader:   recent > 10,
		TagLargeTransfers: large > 0,
		TagLowDiversity:   uniqueTokens < lowDiversityMin,
	}

	if len(in.Transactions) > 0 {
		var gasSum float64
		failed := 0
		oldest := in.Transactions[0].Timestamp
		for _, tx := range in.Transactions {
			gasSum += WeiToGwei(tx.GasPrice)
			if tx.Failed {
				failed++
			}
			if tx.Timestamp.Before(oldest) {
				oldest = tx.Timestamp
			}
		}
		total := len(in.Transactions)
		set[TagHighGasBidder] = gasSum/float64(total) > highGasGwei
		set[TagHighFailureRate] = total >= failureRateMinTxs && float64(failed)/float64(total) > failureRateLimit
		set[TagNewWallet] = in.Now.Sub(oldest) < newWalletAge
	}

	tags := []string{}
	for tag, on := range set {
		if on {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

func topTokens(in WalletInput) []TokenHolding {
	type holding struct {
		symbol string
		amount float64
	}
	byContract := map[string]*holding{}
	order := []string{}

	for _, tr := range in.TokenTransfers {
		key := strings.ToLower(tr.ContractAddress)
		h, ok := byContract[key]
		if !ok {
			h = &holding{symbol: tr.TokenSymbol}
			byContract[key] = h
			order = append(order, key)
		}

		amount := TokenAmount(tr.Value, tr.Decimals)
		incoming := sameAddress(tr.To, in.Address)
		outgoing := sameAddress(tr.From, in.Address)
		switch {
		case incoming && outgoing:
		case outgoing:
			h.amount -= amount
		default:
			h.amount += amount
		}
	}

	holdings := []TokenHolding{}
	var totalUSD float64
	for _, key := range order {
		h := byContract[key]
		if h.amount <= 0 {
			continue
		}
		usd := h.amount * in.Prices[strings.ToUpper(h.symbol)]
		totalUSD += usd
		holdings = append(holdings, TokenHolding{
			Token:           h.symbol,
			ContractAddress: key,
			Amount:          h.amount,
			USDValue:        usd,
		})
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		if holdings[i].USDValue != holdings[j].USDValue {
			return holdings[i].USDValue > holdings[j].USDValue
		}
		if holdings[i].Amount != holdings[j].Amount {
			return holdings[i].Amount > holdings[j].Amount
		}
		return holdings[i].Token < holdings[j].Token
	})

	if totalUSD > 0 {
		for i := range holdings {
			holdings[i].Percentage = holdings[i].USDValue / totalUSD * 100
		}
	}

	if len(holdings) > topTokenLimit {
		holdings = holdings[:topTokenLimit]
	}
	return holdings
}

func recentActivity(in WalletInput) []ActivityRecord {
	txs := make([]Transaction, len(in.Transactions))
	copy(txs, in.Transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
	if len(txs) > recentActivityLimit {
		txs = txs[:recentActivityLimit]
	}

	records := make([]ActivityRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, ActivityRecord{
			Hash:      tx.Hash,
			From:      strings.ToLower(tx.From),
			To:        strings.ToLower(tx.To),
			Value:     WeiToNative(tx.Value),
			Direction: direction(tx, in.Address),
			Failed:    tx.Failed,
			Timestamp: tx.Timestamp,
		})
	}
	return records
}

func direction(tx Transaction, wallet string) string {
	from := sameAddress(tx.From, wallet)
	to := sameAddress(tx.To, wallet)
	switch {
	case from && to:
		return DirectionSelf
	case from:
		return DirectionOut
	default:
		return DirectionIn
	}
}

func countSince(txs []Transaction, cutoff time.Time) int {
	n := 0
	for _, tx := range txs {
		if !tx.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}

func countLarge(txs []Transaction) int {
	n := 0
	for _, tx := range txs {
		if WeiToNative(tx.Value) > largeTxNative {
			n++
		}
	}
	return n
}

func countTokenContracts(transfers []TokenTransfer) int {
	seen := map[string]struct{}{}
	for _, tr := range transfers {
		seen[strings.ToLower(tr.ContractAddress)] = struct{}{}
	}
	return len(seen)
}

// TokenSymbols lists the distinct upper-case symbols seen in transfers
func TokenSymbols(transfers []TokenTransfer) []string {
	seen := map[string]struct{}{}
	symbols := []string{}
	for _, tr := range transfers {
		s := strings.ToUpper(strings.TrimSpace(tr.TokenSymbol))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// WeiToNative converts wei to whole native units (BNB, ETH)
func WeiToNative(wei *big.Int) float64 {
	return scaleDown(wei, big.NewFloat(params.Ether))
}

// WeiToGwei converts wei to gwei
func WeiToGwei(wei *big.Int) float64 {
	return scaleDown(wei, big.NewFloat(params.GWei))
}

// TokenAmount applies token decimals to a raw transfer value
func TokenAmount(raw *big.Int, decimals int) float64 {
	if decimals <= 0 {
		return scaleDown(raw, big.NewFloat(1))
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return scaleDown(raw, new(big.Float).SetInt(unit))
}

func scaleDown(n *big.Int, unit *big.Float) float64 {
	if n == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(n), unit).Float64()
	return f
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
