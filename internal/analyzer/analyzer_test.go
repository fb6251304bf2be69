package analyzer

import (
	"context"
	"errors"
	"io"
	"math/big"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/liamashdown/cryptoguard/internal/address"
	"github.com/liamashdown/cryptoguard/internal/alerts"
	"github.com/liamashdown/cryptoguard/internal/cache"
	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/liamashdown/cryptoguard/internal/explorer"
	"github.com/liamashdown/cryptoguard/internal/risk"
	"github.com/liamashdown/cryptoguard/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	testAddr  = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	tokenAddr = "0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82"
)

const riskySource = `pragma solidity ^0.8.0;
contract A { function kill() external { selfdestruct(payable(tx.origin)); } }`

var errUpstream = errors.New("upstream down")

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int

	source    *explorer.SourceCode
	abi       string
	balance   *big.Int
	txs       []explorer.Transaction
	transfers []explorer.TokenTransfer
	err       error

	// when gate is set, GetSourceCode signals started and blocks until gate closes
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeFetcher) hit(action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[action]++
}

func (f *fakeFetcher) count(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[action]
}

func (f *fakeFetcher) GetSourceCode(ctx context.Context, address string) (*explorer.SourceCode, error) {
	f.hit("getsourcecode")
	if f.gate != nil {
		f.once.Do(func() { close(f.started) })
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.source, f.err
}

func (f *fakeFetcher) GetABI(ctx context.Context, address string) (string, error) {
	f.hit("getabi")
	return f.abi, f.err
}

func (f *fakeFetcher) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	f.hit("balance")
	return f.balance, f.err
}

func (f *fakeFetcher) GetTransactionList(ctx context.Context, address string, blocks explorer.BlockRange) ([]explorer.Transaction, error) {
	f.hit("txlist")
	return f.txs, f.err
}

func (f *fakeFetcher) GetTokenTransfers(ctx context.Context, address string) ([]explorer.TokenTransfer, error) {
	f.hit("tokentx")
	return f.transfers, f.err
}

type fakePrices struct {
	prices map[string]float64
	err    error
}

func (p *fakePrices) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return p.prices, p.err
}

type recordingSender struct {
	mu       sync.Mutex
	payloads []*alerts.AlertPayload
}

func (s *recordingSender) Send(ctx context.Context, payload *alerts.AlertPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	analyses []*storage.AnalysisRecord
	alerts   []*storage.AlertRecord
}

func (s *fakeStore) InsertAnalysis(ctx context.Context, record *storage.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, record)
	return nil
}

func (s *fakeStore) InsertAlert(ctx context.Context, alert *storage.AlertRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return strconv.Itoa(len(s.alerts)), nil
}

func (s *fakeStore) GetLastAlertForAddress(ctx context.Context, address string) (*storage.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].Address == address {
			return s.alerts[i], nil
		}
	}
	return nil, nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Environment:         "test",
		Chain:               "bsc",
		Chains:              config.DefaultChains(),
		CacheTTL:            time.Minute,
		AlertCooldownMins:   60,
		WalletWarnScore:     70,
		WalletAlertScore:    90,
		ContractWarnScore:   70,
		AnalysisConcurrency: 2,
	}
}

func newTestAnalyzer(f Fetcher, p PriceSource, c cache.Cache, store Store, sender alerts.Sender) *Analyzer {
	log := logrus.New()
	log.SetOutput(io.Discard)

	a := New(testConfig(), f, p, c, store, sender, log)
	a.now = func() time.Time { return testNow }
	return a
}

func TestAnalyzeContractRejectsInvalidAddress(t *testing.T) {
	f := &fakeFetcher{}
	a := newTestAnalyzer(f, nil, nil, nil, nil)

	for _, raw := range []string{"", "0x123", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0xZZaeb6053f3e94c9b9a09f33669435e7ef1beaed"} {
		if _, err := a.AnalyzeContract(context.Background(), raw); !errors.Is(err, address.ErrInvalidAddress) {
			t.Errorf("AnalyzeContract(%q) error = %v, want ErrInvalidAddress", raw, err)
		}
		if _, err := a.AnalyzeWallet(context.Background(), raw); !errors.Is(err, address.ErrInvalidAddress) {
			t.Errorf("AnalyzeWallet(%q) error = %v, want ErrInvalidAddress", raw, err)
		}
	}
	if f.count("getsourcecode")+f.count("balance") != 0 {
		t.Error("invalid input must not reach the explorer")
	}
}

func TestAnalyzeContractUpstreamDown(t *testing.T) {
	a := newTestAnalyzer(&fakeFetcher{err: errUpstream}, nil, nil, nil, nil)

	report, err := a.AnalyzeContract(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("upstream failure must not fail the analysis: %v", err)
	}

	if report.Features.Verified {
		t.Error("fallback source must not be verified")
	}
	if report.Score != 95 || report.Grade != risk.GradeAPlus {
		t.Errorf("score = %d grade = %s, want 95 A+", report.Score, report.Grade)
	}
	want := []string{risk.RecommendVerify, risk.RecommendDocumentation}
	if !reflect.DeepEqual(report.Recommendations, want) {
		t.Errorf("recommendations = %v, want %v", report.Recommendations, want)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("expected one source warning, got %v", report.Warnings)
	}
	if report.ID == "" || !report.AnalyzedAt.Equal(testNow) {
		t.Errorf("report metadata not populated: id=%q at=%v", report.ID, report.AnalyzedAt)
	}
}

func TestAnalyzeContractVerified(t *testing.T) {
	f := &fakeFetcher{
		source: &explorer.SourceCode{SourceCode: "pragma solidity ^0.8.0; contract Vault {}", ContractName: "Vault"},
		abi:    `[{"type":"function","name":"deposit","inputs":[],"outputs":[]}]`,
	}
	a := newTestAnalyzer(f, nil, nil, nil, nil)

	report, err := a.AnalyzeContract(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("AnalyzeContract: %v", err)
	}
	if !report.Features.Verified || report.ContractName != "Vault" {
		t.Errorf("expected verified Vault, got %+v", report.Features)
	}
	if report.Vulnerabilities.Total() != 0 {
		t.Errorf("expected clean source, got %+v", report.Vulnerabilities)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", report.Warnings)
	}
}

func TestAnalyzeContractAlertsWithCooldown(t *testing.T) {
	f := &fakeFetcher{source: &explorer.SourceCode{SourceCode: riskySource, ContractName: "A"}}
	sender := &recordingSender{}
	store := &fakeStore{}
	a := newTestAnalyzer(f, nil, nil, store, sender)

	for i := 0; i < 2; i++ {
		report, err := a.AnalyzeContract(context.Background(), testAddr)
		if err != nil {
			t.Fatalf("AnalyzeContract: %v", err)
		}
		if report.Vulnerabilities.Critical != 2 {
			t.Fatalf("critical = %d, want 2", report.Vulnerabilities.Critical)
		}
	}

	if len(sender.payloads) != 1 {
		t.Fatalf("expected one alert inside the cooldown window, got %d", len(sender.payloads))
	}
	p := sender.payloads[0]
	if p.Severity != alerts.SeverityAlert || p.Kind != alerts.KindContract || p.Findings.Critical != 2 {
		t.Errorf("unexpected payload %+v", p)
	}
	if len(store.analyses) != 2 || len(store.alerts) != 1 {
		t.Errorf("stored %d analyses and %d alerts, want 2 and 1", len(store.analyses), len(store.alerts))
	}

	// cooldown elapsed
	a.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	if _, err := a.AnalyzeContract(context.Background(), testAddr); err != nil {
		t.Fatalf("AnalyzeContract: %v", err)
	}
	if len(sender.payloads) != 2 {
		t.Errorf("expected alert after cooldown, got %d", len(sender.payloads))
	}
}

func TestInMemoryCooldownWithoutStore(t *testing.T) {
	f := &fakeFetcher{source: &explorer.SourceCode{SourceCode: riskySource}}
	sender := &recordingSender{}
	a := newTestAnalyzer(f, nil, nil, nil, sender)

	for i := 0; i < 3; i++ {
		if _, err := a.AnalyzeContract(context.Background(), testAddr); err != nil {
			t.Fatalf("AnalyzeContract: %v", err)
		}
	}
	if len(sender.payloads) != 1 {
		t.Errorf("expected one alert, got %d", len(sender.payloads))
	}
}

func TestAnalyzeContractUsesCache(t *testing.T) {
	f := &fakeFetcher{source: &explorer.SourceCode{SourceCode: "pragma solidity ^0.8.0;"}}
	a := newTestAnalyzer(f, nil, cache.NewMemory(), nil, nil)

	first, err := a.AnalyzeContract(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("AnalyzeContract: %v", err)
	}
	// checksum casing must hit the same entry
	second, err := a.AnalyzeContract(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if err != nil {
		t.Fatalf("AnalyzeContract: %v", err)
	}

	if f.count("getsourcecode") != 1 {
		t.Errorf("expected one upstream fetch, got %d", f.count("getsourcecode"))
	}
	if first.Cached || !second.Cached {
		t.Errorf("cached flags = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if second.ID != first.ID || second.Score != first.Score || second.Grade != first.Grade {
		t.Errorf("cached report differs: %+v vs %+v", second, first)
	}
}

func TestAnalyzeContractCancelled(t *testing.T) {
	a := newTestAnalyzer(&fakeFetcher{err: context.Canceled}, nil, cache.NewMemory(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.AnalyzeContract(ctx, testAddr); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func gatedFetcher() *fakeFetcher {
	return &fakeFetcher{
		source:  &explorer.SourceCode{SourceCode: "pragma solidity ^0.8.0; contract Vault {}", ContractName: "Vault"},
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
}

func TestAnalyzeContractSharesConcurrentRequests(t *testing.T) {
	f := gatedFetcher()
	a := newTestAnalyzer(f, nil, nil, nil, nil)

	const callers = 5
	var (
		wg      sync.WaitGroup
		reports = make([]*ContractReport, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = a.AnalyzeContract(context.Background(), testAddr)
		}(i)
	}

	<-f.started
	time.Sleep(100 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := f.count("getsourcecode"); n != 1 {
		t.Errorf("expected one upstream fetch for %d callers, got %d", callers, n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if reports[i].ID != reports[0].ID {
			t.Errorf("caller %d got report %s, want %s", i, reports[i].ID, reports[0].ID)
		}
	}
}

func TestAnalyzeContractCancelledCallerDoesNotFailOthers(t *testing.T) {
	f := gatedFetcher()
	a := newTestAnalyzer(f, nil, nil, nil, nil)

	type result struct {
		report *ContractReport
		err    error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		r, err := a.AnalyzeContract(ctx, testAddr)
		first <- result{r, err}
	}()

	<-f.started
	go func() {
		r, err := a.AnalyzeContract(context.Background(), testAddr)
		second <- result{r, err}
	}()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case r := <-first:
		if !errors.Is(r.err, context.Canceled) {
			t.Fatalf("cancelled caller error = %v, want context.Canceled", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(f.gate)
	select {
	case r := <-second:
		if r.err != nil {
			t.Fatalf("waiting caller failed after the other cancelled: %v", r.err)
		}
		if !r.report.Features.Verified || r.report.ContractName != "Vault" {
			t.Errorf("waiting caller got fallback report: %+v", r.report.Features)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller did not return")
	}
	if n := f.count("getsourcecode"); n != 1 {
		t.Errorf("expected one upstream fetch, got %d", n)
	}
}

func walletFixture() *fakeFetcher {
	ether := big.NewInt(1e18)
	unix := func(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

	var txs []explorer.Transaction
	for i := 0; i < 12; i++ {
		txs = append(txs, explorer.Transaction{
			Hash:      "0x" + strconv.Itoa(i),
			From:      testAddr,
			To:        tokenAddr,
			Value:     new(big.Int).Mul(big.NewInt(2000), ether).String(),
			GasPrice:  "5000000000",
			TimeStamp: unix(testNow.Add(-time.Duration(i) * time.Hour)),
			IsError:   "0",
		})
	}

	return &fakeFetcher{
		balance: new(big.Int).Mul(big.NewInt(20000), ether),
		txs:     txs,
		transfers: []explorer.TokenTransfer{{
			Hash:            "0xt1",
			From:            tokenAddr,
			To:              testAddr,
			ContractAddress: tokenAddr,
			TokenSymbol:     "Cake",
			TokenDecimal:    "18",
			Value:           new(big.Int).Mul(big.NewInt(100), ether).String(),
			TimeStamp:       unix(testNow.Add(-30 * 24 * time.Hour)),
		}},
	}
}

func TestAnalyzeWallet(t *testing.T) {
	f := walletFixture()
	prices := &fakePrices{prices: map[string]float64{"CAKE": 2.5}}
	a := newTestAnalyzer(f, prices, nil, nil, nil)

	report, err := a.AnalyzeWallet(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("AnalyzeWallet: %v", err)
	}

	want := risk.AnalyzeWallet(risk.WalletInput{
		Address:        testAddr,
		Balance:        f.balance,
		Transactions:   explorer.ToRiskTransactions(f.txs),
		TokenTransfers: explorer.ToRiskTokenTransfers(f.transfers),
		Prices:         prices.prices,
		Now:            testNow,
	})
	if report.RiskScore != want.RiskScore || !reflect.DeepEqual(report.Tags, want.Tags) {
		t.Errorf("got score %d tags %v, want %d %v", report.RiskScore, report.Tags, want.RiskScore, want.Tags)
	}
	if report.BalanceNative != 20000 || report.NativeSymbol != "BNB" {
		t.Errorf("balance = %v %s", report.BalanceNative, report.NativeSymbol)
	}
	if len(report.TopTokens) != 1 || report.TopTokens[0].USDValue != 250 {
		t.Errorf("top tokens = %+v", report.TopTokens)
	}
	if len(report.RecentActivity) != 10 {
		t.Errorf("recent activity = %d entries, want 10", len(report.RecentActivity))
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", report.Warnings)
	}
}

func TestAnalyzeWalletUpstreamDown(t *testing.T) {
	a := newTestAnalyzer(&fakeFetcher{err: errUpstream}, &fakePrices{}, nil, nil, nil)

	report, err := a.AnalyzeWallet(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("AnalyzeWallet: %v", err)
	}

	want := risk.AnalyzeWallet(risk.WalletInput{Address: testAddr, Now: testNow})
	if report.RiskScore != want.RiskScore {
		t.Errorf("score = %d, want %d", report.RiskScore, want.RiskScore)
	}
	if report.BalanceNative != 0 {
		t.Errorf("fallback balance = %v, want 0", report.BalanceNative)
	}
	if len(report.Warnings) != 3 {
		t.Errorf("expected balance, txlist and tokentx warnings, got %v", report.Warnings)
	}
	if report.TopTokens == nil || report.RecentActivity == nil || report.Tags == nil {
		t.Error("report slices must be non-nil")
	}
}

func TestAnalyzeWalletPriceFailureDegrades(t *testing.T) {
	f := walletFixture()
	a := newTestAnalyzer(f, &fakePrices{err: errUpstream}, nil, nil, nil)

	report, err := a.AnalyzeWallet(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("AnalyzeWallet: %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("expected a prices warning, got %v", report.Warnings)
	}
	if len(report.TopTokens) != 1 || report.TopTokens[0].USDValue != 0 {
		t.Errorf("unpriced token should value at 0: %+v", report.TopTokens)
	}
}

func TestSeverity(t *testing.T) {
	a := newTestAnalyzer(&fakeFetcher{}, nil, nil, nil, nil)

	contracts := []struct {
		name   string
		report ContractReport
		want   alerts.Severity
	}{
		{"grade F", contractReport(40, risk.GradeF, 0), alerts.SeverityAlert},
		{"critical finding", contractReport(85, risk.GradeBPlus, 1), alerts.SeverityAlert},
		{"below warn score", contractReport(65, risk.GradeDPlus, 0), alerts.SeverityWarn},
		{"healthy", contractReport(90, risk.GradeA, 0), alerts.SeverityInfo},
	}
	for _, tt := range contracts {
		if got := a.contractSeverity(&tt.report); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}

	wallets := []struct {
		score int
		want  alerts.Severity
	}{
		{95, alerts.SeverityAlert},
		{90, alerts.SeverityAlert},
		{70, alerts.SeverityWarn},
		{69, alerts.SeverityInfo},
	}
	for _, tt := range wallets {
		r := &WalletReport{WalletAnalysis: risk.WalletAnalysis{RiskScore: tt.score}}
		if got := a.walletSeverity(r); got != tt.want {
			t.Errorf("wallet score %d: got %s, want %s", tt.score, got, tt.want)
		}
	}
}

func contractReport(score int, grade risk.Grade, critical int) ContractReport {
	return ContractReport{ContractAssessment: risk.ContractAssessment{
		Vulnerabilities: risk.VulnerabilityCounts{Critical: critical},
		ScoreResult:     risk.ScoreResult{Score: score, Grade: grade},
	}}
}
