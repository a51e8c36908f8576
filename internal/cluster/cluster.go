// Package cluster detects insider-transaction clustering patterns: three or
// more insiders transacting in the same issuer within a rolling window is a
// strong directional signal.
package cluster

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/supplysignals/supplysig/internal/timeparse"
)

// Transaction is one parsed Form 4 transaction row, as produced by the
// upstream filing ingestor.
type Transaction struct {
	IssuerCIK        string  `json:"issuer_cik"`
	IssuerName       string  `json:"issuer_name"`
	IssuerTicker     string  `json:"issuer_ticker"`
	InsiderName      string  `json:"insider_name"`
	InsiderCIK       string  `json:"insider_cik"`
	IsDirector       bool    `json:"is_director"`
	IsOfficer        bool    `json:"is_officer"`
	TransactionDate  string  `json:"transaction_date"`
	TransactionCode  string  `json:"transaction_code"`
	Shares           float64 `json:"shares"`
	PricePerShare    float64 `json:"price_per_share"`
	AcquiredDisposed string  `json:"acquired_disposed"`
	IsBullish        bool    `json:"is_bullish"`
	AccessionNumber  string  `json:"accession_number"`
}

// Insider is the audit-trail entry for one transaction inside a cluster.
type Insider struct {
	Name            string `json:"name"`
	Role            string `json:"role"`
	TransactionCode string `json:"transaction_code"`
	Shares          int64  `json:"shares"`
	Date            string `json:"date"`
}

// Signal is one detected cluster, shaped to feed the fusion engine's
// insider_cluster scoring.
type Signal struct {
	SignalType          string    `json:"signal_type"` // always "insider_cluster"
	IssuerCIK           string    `json:"issuer_cik"`
	IssuerName          string    `json:"issuer_name"`
	IssuerTicker        string    `json:"issuer_ticker"`
	ClusterStartDate    string    `json:"cluster_start_date"`
	ClusterEndDate      string    `json:"cluster_end_date"`
	WindowDays          int       `json:"window_days"`
	NumInsiders         int       `json:"num_insiders"`
	NumTransactions     int       `json:"num_transactions"`
	TotalShares         int64     `json:"total_shares"`
	BullishTransactions int       `json:"bullish_transactions"`
	BearishTransactions int       `json:"bearish_transactions"`
	Sentiment           string    `json:"sentiment"`
	Score               int       `json:"score"`
	Insiders            []Insider `json:"insiders"`
}

// LoadTransactions reads transaction rows from a JSONL file, skipping
// malformed lines of any length. The second return is the skipped-line count.
func LoadTransactions(path string) ([]Transaction, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var (
		txns    []Transaction
		skipped int
	)
	r := bufio.NewReader(f)
	for {
		raw, readErr := r.ReadString('\n')
		if line := bytes.TrimSpace([]byte(raw)); len(line) > 0 {
			var txn Transaction
			if err := json.Unmarshal(line, &txn); err != nil {
				skipped++
			} else {
				txns = append(txns, txn)
			}
		}
		if readErr == io.EOF {
			return txns, skipped, nil
		}
		if readErr != nil {
			return txns, skipped, readErr
		}
	}
}

type datedTxn struct {
	Transaction
	at time.Time
}

// Detect finds clusters of minInsiders or more unique insiders transacting
// within windowDays per issuer. The scan is greedy: the first qualifying
// window for an issuer is emitted and the rest of that issuer's anchors are
// skipped. Transactions with unusable dates are dropped.
func Detect(txns []Transaction, windowDays, minInsiders int) []Signal {
	if len(txns) == 0 {
		return nil
	}

	var issuerOrder []string
	byIssuer := make(map[string][]datedTxn)
	for _, txn := range txns {
		at, err := timeparse.ParseToUTC(txn.TransactionDate, "")
		if err != nil {
			continue
		}
		if _, seen := byIssuer[txn.IssuerCIK]; !seen {
			issuerOrder = append(issuerOrder, txn.IssuerCIK)
		}
		byIssuer[txn.IssuerCIK] = append(byIssuer[txn.IssuerCIK], datedTxn{Transaction: txn, at: at})
	}

	window := time.Duration(windowDays) * 24 * time.Hour
	var clusters []Signal

	for _, cik := range issuerOrder {
		group := byIssuer[cik]
		sort.SliceStable(group, func(i, j int) bool { return group[i].at.Before(group[j].at) })

		for i, anchor := range group {
			windowEnd := anchor.at.Add(window)

			var windowTxns []datedTxn
			uniqueInsiders := make(map[string]struct{})
			for _, txn := range group[i:] {
				if txn.at.After(windowEnd) {
					break
				}
				windowTxns = append(windowTxns, txn)
				uniqueInsiders[txn.InsiderCIK] = struct{}{}
			}
			if len(uniqueInsiders) < minInsiders {
				continue
			}

			clusters = append(clusters, buildSignal(windowTxns, uniqueInsiders, windowDays, minInsiders))
			break
		}
	}
	return clusters
}

func buildSignal(windowTxns []datedTxn, uniqueInsiders map[string]struct{}, windowDays, minInsiders int) Signal {
	bullish, bearish := 0, 0
	var totalShares float64
	for _, t := range windowTxns {
		if t.IsBullish {
			bullish++
		} else if t.TransactionCode == "S" || t.TransactionCode == "D" {
			bearish++
		}
		totalShares += t.Shares
	}

	sentiment, score := "MIXED", 4
	switch {
	case bullish >= minInsiders:
		sentiment, score = "STRONG_BULLISH", 8
	case bearish >= minInsiders:
		sentiment, score = "BEARISH", 2
	case bullish > bearish:
		sentiment, score = "BULLISH", 6
	}

	insiders := make([]Insider, 0, len(windowTxns))
	for _, t := range windowTxns {
		insiders = append(insiders, Insider{
			Name:            t.InsiderName,
			Role:            role(t.Transaction),
			TransactionCode: t.TransactionCode,
			Shares:          int64(t.Shares),
			Date:            t.TransactionDate,
		})
	}

	first := windowTxns[0]
	last := windowTxns[len(windowTxns)-1]
	return Signal{
		SignalType:          "insider_cluster",
		IssuerCIK:           first.IssuerCIK,
		IssuerName:          first.IssuerName,
		IssuerTicker:        first.IssuerTicker,
		ClusterStartDate:    first.TransactionDate,
		ClusterEndDate:      last.TransactionDate,
		WindowDays:          windowDays,
		NumInsiders:         len(uniqueInsiders),
		NumTransactions:     len(windowTxns),
		TotalShares:         int64(totalShares),
		BullishTransactions: bullish,
		BearishTransactions: bearish,
		Sentiment:           sentiment,
		Score:               score,
		Insiders:            insiders,
	}
}

func role(t Transaction) string {
	switch {
	case t.IsDirector:
		return "Director"
	case t.IsOfficer:
		return "Officer"
	}
	return "Other"
}
