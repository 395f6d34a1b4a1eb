package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrLedgerRead wraps storage failures on queries.
	ErrLedgerRead = errors.New("ledger read failed")
	// ErrLedgerWrite wraps storage failures on writes, including rejected records.
	ErrLedgerWrite = errors.New("ledger write failed")
)

// Outcome is the terminal state recorded for an item.
type Outcome string

const (
	OutcomeSuccess      Outcome = "SUCCESS"
	OutcomeNoTranscript Outcome = "NO_TRANSCRIPT"
	OutcomeSkipped      Outcome = "SKIPPED"
	OutcomeFailed       Outcome = "FAILED"
)

// Outcomes lists every valid outcome in display order.
var Outcomes = []Outcome{OutcomeSuccess, OutcomeNoTranscript, OutcomeSkipped, OutcomeFailed}

func (o Outcome) Valid() bool {
	for _, v := range Outcomes {
		if o == v {
			return true
		}
	}
	return false
}

// ParseOutcome accepts any letter case.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return o, nil
}

// Record is one row of the ledger.
type Record struct {
	ItemID       string
	SourceName   string
	Title        string
	ProcessedAt  time.Time
	Outcome      Outcome
	InputTokens  *int
	OutputTokens *int
	SummaryModel string
	OutputPath   string
	Error        string
}

func (r Record) validate() error {
	if strings.TrimSpace(r.ItemID) == "" {
		return errors.New("item id is required")
	}
	if !r.Outcome.Valid() {
		return fmt.Errorf("invalid outcome %q", r.Outcome)
	}
	return nil
}

// Stats aggregates the ledger.
type Stats struct {
	Total     int
	ByOutcome map[Outcome]int
	BySource  map[string]int
	// FirstProcessedAt and LastProcessedAt are zero when the ledger is empty.
	FirstProcessedAt time.Time
	LastProcessedAt  time.Time
	// Token totals over SUCCESS records.
	InputTokens  int64
	OutputTokens int64
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	SourceName string
	Outcome    Outcome
	Limit      int
}
