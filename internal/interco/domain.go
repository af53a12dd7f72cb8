package interco

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAutoBalancingAccounts indicates the ICJE clearing accounts are not configured.
	ErrAutoBalancingAccounts = errors.New("interco: auto-balancing accounts not configured")
	// ErrBillLocked indicates another worker is generating the same bill.
	ErrBillLocked = errors.New("interco: bill generation already in progress")
	// ErrBillLockLost indicates the bill lock expired or was taken over mid-run.
	ErrBillLockLost = errors.New("interco: bill lock lost")
	// ErrNoBills indicates a batch was requested without bill ids.
	ErrNoBills = errors.New("interco: at least one bill id is required")
)

// ID identifies a record in the ledger store. Zero and negative values are absent.
type ID int64

// Valid reports whether the id references a record.
func (id ID) Valid() bool {
	return id > 0
}

// Int64 returns the raw identifier.
func (id ID) Int64() int64 {
	return int64(id)
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// SourceLine is one expense line of a vendor bill as returned by the line search.
// Mainline, COGS, tax and shipping rows are filtered out by the search itself.
type SourceLine struct {
	BillID                ID
	LineNo                int
	Subsidiary            ID
	DestinationSubsidiary ID
	IntercoEntityUsed     ID
	AccountID             ID
	Department            ID
	Location              ID
	DestinationDepartment ID
	DestinationLocation   ID
	Memo                  string
	Amount                decimal.NullDecimal
	CounterpartyID        ID
	CounterpartyName      string
	TranDate              time.Time
	PostingPeriodID       ID
	LinkedJournalID       ID
}

// Intercompany reports whether the line routes cost to another subsidiary.
func (l SourceLine) Intercompany() bool {
	return l.DestinationSubsidiary.Valid() && l.DestinationSubsidiary != l.Subsidiary
}

// Stage names a step of the per-bill generation state machine.
type Stage string

const (
	StageSelecting  Stage = "selecting"
	StageReversing  Stage = "reversing"
	StageBuilding   Stage = "building"
	StagePersisting Stage = "persisting"
	StageLinking    Stage = "linking"
	StageDone       Stage = "done"
)

// StageError wraps the failure that stopped generation for one bill.
type StageError struct {
	Stage  Stage
	BillID ID
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func failAt(stage Stage, billID ID, err error) *StageError {
	return &StageError{Stage: stage, BillID: billID, Err: err}
}

// Diagnostic records a source line that was skipped while building postings.
type Diagnostic struct {
	BillID ID
	LineNo int
	Reason string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("bill %d line %d: %s", d.BillID, d.LineNo, d.Reason)
}

// Outcome summarises what happened to one bill in a batch.
type Outcome struct {
	BillID      ID
	State       Stage
	JournalID   ID
	Reversed    ID
	Postings    int
	Diagnostics []Diagnostic
	Err         *StageError
}

// Failed reports whether the bill ended in a failed state.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Generated reports whether a new journal was persisted and linked.
func (o Outcome) Generated() bool {
	return o.Err == nil && o.JournalID.Valid()
}
