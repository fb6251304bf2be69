package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractPayload() *AlertPayload {
	return &AlertPayload{
		Severity:     SeverityAlert,
		Kind:         KindContract,
		Chain:        "bsc",
		Address:      "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		AddressShort: "0x5aae...eaed",
		ContractName: "Token",
		Score:        40,
		Grade:        "F",
		Findings:     Findings{Critical: 2, High: 1},
		Reasons:      []string{"Fix critical vulnerabilities"},
		ReportID:     "report-1",
		Timestamp:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Environment:  "test",
	}
}

func TestTitle(t *testing.T) {
	p := contractPayload()
	assert.Equal(t, "Risky contract Token (ALERT)", p.Title())

	w := &AlertPayload{Severity: SeverityWarn, Kind: KindWallet}
	assert.Equal(t, "Risky wallet (WARN)", w.Title())
}

func TestLogSender(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := NewLogSender(log)

	require.NoError(t, s.Send(context.Background(), contractPayload()))
	require.Len(t, hook.Entries, 1)

	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "F", entry.Data["grade"])
	assert.Equal(t, 2, entry.Data["critical"])
}

func TestDiscordSender(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), contractPayload()))

	embeds := received["embeds"].([]interface{})
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]interface{})
	assert.Equal(t, "Risky contract Token (ALERT)", embed["title"])
	assert.Equal(t, float64(0xFF0000), embed["color"])
	assert.Contains(t, embed["description"], "grade **F**")
}

func TestDiscordSenderRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), contractPayload())
	assert.ErrorContains(t, err, "unexpected status 429")
}

func TestEmailBody(t *testing.T) {
	body := buildEmailBody(contractPayload())
	assert.Contains(t, body, "Score:          40/100 (grade F)")
	assert.Contains(t, body, "critical 2, high 1, medium 0, low 0")
	assert.Contains(t, body, "- Fix critical vulnerabilities")

	wallet := &AlertPayload{Severity: SeverityWarn, Kind: KindWallet, Score: 75, Tags: []string{"WHALE", "NEW_WALLET"}}
	body = buildEmailBody(wallet)
	assert.Contains(t, body, "Tags:           WHALE, NEW_WALLET")
	assert.False(t, strings.Contains(body, "RECOMMENDATIONS"))
}

type stubSender struct {
	calls int
	err   error
}

func (s *stubSender) Send(ctx context.Context, payload *AlertPayload) error {
	s.calls++
	return s.err
}

func TestMultiSenderContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	first := &stubSender{err: boom}
	second := &stubSender{}

	err := NewMultiSender(first, second).Send(context.Background(), contractPayload())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}
