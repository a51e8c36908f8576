package cluster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func txn(cik, insider, date, code string, shares float64, bullish bool) Transaction {
	return Transaction{
		IssuerCIK:       cik,
		IssuerName:      "Issuer " + cik,
		IssuerTicker:    "T" + cik,
		InsiderName:     "Insider " + insider,
		InsiderCIK:      insider,
		IsOfficer:       true,
		TransactionDate: date,
		TransactionCode: code,
		Shares:          shares,
		IsBullish:       bullish,
	}
}

func TestDetect_StrongBullishCluster(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "2025-09-01", "P", 1000, true),
		txn("100", "b", "2025-09-10", "P", 2000, true),
		txn("100", "c", "2025-09-20", "P", 500, true),
	}
	clusters := Detect(txns, 30, 3)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.Sentiment != "STRONG_BULLISH" || c.Score != 8 {
		t.Errorf("sentiment/score = %s/%d, want STRONG_BULLISH/8", c.Sentiment, c.Score)
	}
	if c.NumInsiders != 3 || c.NumTransactions != 3 {
		t.Errorf("insiders/transactions = %d/%d, want 3/3", c.NumInsiders, c.NumTransactions)
	}
	if c.TotalShares != 3500 {
		t.Errorf("TotalShares = %d, want 3500", c.TotalShares)
	}
	if c.ClusterStartDate != "2025-09-01" || c.ClusterEndDate != "2025-09-20" {
		t.Errorf("window = %s..%s", c.ClusterStartDate, c.ClusterEndDate)
	}
	if c.SignalType != "insider_cluster" {
		t.Errorf("SignalType = %s", c.SignalType)
	}
}

func TestDetect_BearishCluster(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "2025-09-01", "S", 1000, false),
		txn("100", "b", "2025-09-05", "S", 2000, false),
		txn("100", "c", "2025-09-09", "S", 500, false),
	}
	clusters := Detect(txns, 30, 3)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Sentiment != "BEARISH" || clusters[0].Score != 2 {
		t.Errorf("sentiment/score = %s/%d, want BEARISH/2", clusters[0].Sentiment, clusters[0].Score)
	}
}

func TestDetect_MixedCluster(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "2025-09-01", "P", 1000, true),
		txn("100", "b", "2025-09-05", "S", 2000, false),
		txn("100", "c", "2025-09-09", "S", 500, false),
	}
	clusters := Detect(txns, 30, 3)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	// 1 bullish vs 2 bearish, neither reaching the threshold alone.
	if clusters[0].Sentiment != "MIXED" || clusters[0].Score != 4 {
		t.Errorf("sentiment/score = %s/%d, want MIXED/4", clusters[0].Sentiment, clusters[0].Score)
	}
}

func TestDetect_TooFewInsiders(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "2025-09-01", "P", 1000, true),
		txn("100", "a", "2025-09-05", "P", 2000, true), // same insider again
		txn("100", "b", "2025-09-09", "P", 500, true),
	}
	if clusters := Detect(txns, 30, 3); len(clusters) != 0 {
		t.Errorf("2 unique insiders should not cluster, got %d", len(clusters))
	}
}

func TestDetect_OutsideWindow(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "2025-01-01", "P", 1000, true),
		txn("100", "b", "2025-03-01", "P", 2000, true),
		txn("100", "c", "2025-05-01", "P", 500, true),
	}
	if clusters := Detect(txns, 30, 3); len(clusters) != 0 {
		t.Errorf("spread-out transactions should not cluster, got %d", len(clusters))
	}
}

func TestDetect_OneClusterPerIssuer(t *testing.T) {
	// Six tight transactions; only the first qualifying window emits.
	var txns []Transaction
	for i, insider := range []string{"a", "b", "c", "d", "e", "f"} {
		txns = append(txns, txn("100", insider, "2025-09-0"+string(rune('1'+i)), "P", 100, true))
	}
	clusters := Detect(txns, 30, 3)
	if len(clusters) != 1 {
		t.Errorf("expected a single cluster per issuer, got %d", len(clusters))
	}
}

func TestDetect_IssuersIndependent(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "2025-09-01", "P", 100, true),
		txn("200", "x", "2025-09-01", "S", 100, false),
		txn("100", "b", "2025-09-02", "P", 100, true),
		txn("200", "y", "2025-09-02", "S", 100, false),
		txn("100", "c", "2025-09-03", "P", 100, true),
		txn("200", "z", "2025-09-03", "S", 100, false),
	}
	clusters := Detect(txns, 30, 3)
	if len(clusters) != 2 {
		t.Fatalf("expected one cluster per issuer, got %d", len(clusters))
	}
	if clusters[0].IssuerCIK != "100" || clusters[1].IssuerCIK != "200" {
		t.Errorf("issuer order = %s, %s; want first-seen order", clusters[0].IssuerCIK, clusters[1].IssuerCIK)
	}
	if clusters[0].Sentiment != "STRONG_BULLISH" || clusters[1].Sentiment != "BEARISH" {
		t.Errorf("sentiments = %s, %s", clusters[0].Sentiment, clusters[1].Sentiment)
	}
}

func TestDetect_BadDatesDropped(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "not a date", "P", 100, true),
		txn("100", "b", "2025-09-01", "P", 100, true),
		txn("100", "c", "2025-09-02", "P", 100, true),
	}
	if clusters := Detect(txns, 30, 3); len(clusters) != 0 {
		t.Errorf("undated transaction cannot count toward the minimum, got %d clusters", len(clusters))
	}
}

func TestDetect_InsiderAuditTrail(t *testing.T) {
	txns := []Transaction{
		txn("100", "a", "2025-09-01", "P", 1000, true),
		txn("100", "b", "2025-09-02", "P", 2000, true),
		txn("100", "c", "2025-09-03", "P", 500, true),
	}
	clusters := Detect(txns, 30, 3)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	insiders := clusters[0].Insiders
	if len(insiders) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(insiders))
	}
	if insiders[0].Role != "Officer" {
		t.Errorf("Role = %s, want Officer", insiders[0].Role)
	}
	if insiders[0].Shares != 1000 {
		t.Errorf("Shares = %d, want 1000", insiders[0].Shares)
	}
}

func TestLoadTransactions_SkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txns.jsonl")
	content := strings.Join([]string{
		`{"issuer_cik":"100","insider_cik":"a","transaction_date":"2025-09-01","transaction_code":"P","shares":100,"is_bullish":true}`,
		`not json`,
		``,
		`{"issuer_cik":"100","insider_cik":"b","transaction_date":"2025-09-02","transaction_code":"P","shares":200,"is_bullish":true}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	txns, skipped, err := LoadTransactions(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 2 {
		t.Errorf("loaded %d transactions, want 2", len(txns))
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestLoadTransactions_OversizedLineCostsOnlyItself(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txns.jsonl")
	huge := "garbage " + strings.Repeat("x", 2<<20)
	content := strings.Join([]string{
		`{"issuer_cik":"100","insider_cik":"a","transaction_date":"2025-09-01","transaction_code":"P","shares":100,"is_bullish":true}`,
		huge,
		`{"issuer_cik":"100","insider_cik":"b","transaction_date":"2025-09-02","transaction_code":"P","shares":200,"is_bullish":true}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	txns, skipped, err := LoadTransactions(path)
	if err != nil {
		t.Fatalf("an oversized line must not abort the file: %v", err)
	}
	if len(txns) != 2 || skipped != 1 {
		t.Errorf("loaded %d, skipped %d; want 2/1", len(txns), skipped)
	}
}
