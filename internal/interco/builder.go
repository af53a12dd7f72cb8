package interco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/interco/internal/accounting/journals"
	"github.com/odyssey-erp/interco/internal/accounting/mappings"
)

// AccountConfig reads the auto-balancing clearing accounts.
type AccountConfig interface {
	AutoBalancing(ctx context.Context) (mappings.AutoBalancingAccounts, error)
}

// Builder turns the qualifying lines of one bill into a balanced journal.
type Builder struct {
	lookup   *Lookup
	accounts AccountConfig
	logger   *slog.Logger
}

// NewBuilder wires the reference lookups and account configuration.
func NewBuilder(lookup *Lookup, accounts AccountConfig, logger *slog.Logger) *Builder {
	return &Builder{lookup: lookup, accounts: accounts, logger: logger}
}

// BuildResult carries the in-memory journal and the lines that were skipped.
type BuildResult struct {
	Document    journals.Document
	Diagnostics []Diagnostic
}

// Empty reports whether no line produced postings.
func (r BuildResult) Empty() bool {
	return len(r.Document.Postings) == 0
}

// Build constructs the journal for billID. Every qualifying line yields an
// origin pair and a destination pair, so each subsidiary balances on its own.
// Lines that cannot be posted are skipped with a diagnostic.
func (b *Builder) Build(ctx context.Context, billID ID, lines []SourceLine, runID uuid.UUID) (BuildResult, error) {
	if b == nil || b.accounts == nil {
		return BuildResult{}, errors.New("interco: builder not configured")
	}
	if len(lines) == 0 {
		return BuildResult{}, nil
	}
	accounts, err := b.accounts.AutoBalancing(ctx)
	if err != nil {
		return BuildResult{}, fmt.Errorf("%w: %v", ErrAutoBalancingAccounts, err)
	}
	if !accounts.Complete() {
		return BuildResult{}, ErrAutoBalancingAccounts
	}

	origin := firstOrigin(lines)
	first := lines[0]
	header := journals.Document{
		Subsidiary: first.Subsidiary.Int64(),
		Date:       first.TranDate,
		Memo:       first.Memo,
		BillID:     billID.Int64(),
		RunID:      runID,
	}
	if !first.Subsidiary.Valid() {
		header.Subsidiary = origin.Int64()
	}
	period, err := b.lookup.SelectOpenPeriod(ctx, first.PostingPeriodID)
	if err != nil {
		return BuildResult{}, fmt.Errorf("select posting period: %w", err)
	}
	header.PeriodID = period.Int64()

	cache := b.lookup.newPartnerCache()
	payablePartner, err := cache.resolve(ctx, origin)
	if err != nil {
		return BuildResult{}, fmt.Errorf("resolve interco partner for subsidiary %d: %w", origin, err)
	}

	result := BuildResult{Document: header}
	for _, line := range lines {
		if reason := skipReason(line); reason != "" {
			diag := Diagnostic{BillID: billID, LineNo: line.LineNo, Reason: reason}
			result.Diagnostics = append(result.Diagnostics, diag)
			b.log().Warn("skipping line", slog.Int64("bill_id", billID.Int64()), slog.Int("line", line.LineNo), slog.String("reason", reason))
			continue
		}
		if line.Subsidiary != origin {
			b.log().Warn("line origin differs from document origin",
				slog.Int64("bill_id", billID.Int64()),
				slog.Int("line", line.LineNo),
				slog.Int64("line_subsidiary", line.Subsidiary.Int64()),
				slog.Int64("document_subsidiary", origin.Int64()))
		}
		receivablePartner := line.IntercoEntityUsed
		if !receivablePartner.Valid() {
			receivablePartner, err = cache.resolve(ctx, line.DestinationSubsidiary)
			if err != nil {
				return BuildResult{}, fmt.Errorf("resolve interco partner for subsidiary %d: %w", line.DestinationSubsidiary, err)
			}
		}
		amount := line.Amount.Decimal.Abs()
		result.Document.Postings = append(result.Document.Postings, originPair(line, amount, accounts.Receivable, receivablePartner)...)
		result.Document.Postings = append(result.Document.Postings, destinationPair(line, amount, accounts.Payable, payablePartner)...)
	}

	if result.Empty() {
		return result, nil
	}
	if err := result.Document.Validate(); err != nil {
		return BuildResult{}, err
	}
	return result, nil
}

// originPair credits the expense out of the origin subsidiary and parks it on
// the intercompany receivable.
func originPair(line SourceLine, amount decimal.Decimal, receivable int64, partner ID) []journals.Posting {
	return []journals.Posting{
		{
			Subsidiary: line.Subsidiary.Int64(),
			AccountID:  line.AccountID.Int64(),
			Department: line.Department.Int64(),
			Location:   line.Location.Int64(),
			Credit:     amount,
			Memo:       line.Memo,
			EntityID:   line.CounterpartyID.Int64(),
			EntityName: line.CounterpartyName,
		},
		{
			Subsidiary: line.Subsidiary.Int64(),
			AccountID:  receivable,
			Location:   line.Location.Int64(),
			Debit:      amount,
			EntityID:   partner.Int64(),
		},
	}
}

// destinationPair books the expense in the destination subsidiary against the
// intercompany payable.
func destinationPair(line SourceLine, amount decimal.Decimal, payable int64, partner ID) []journals.Posting {
	return []journals.Posting{
		{
			Subsidiary: line.DestinationSubsidiary.Int64(),
			AccountID:  line.AccountID.Int64(),
			Department: line.DestinationDepartment.Int64(),
			Location:   line.DestinationLocation.Int64(),
			Debit:      amount,
			Memo:       line.Memo,
			EntityID:   line.CounterpartyID.Int64(),
			EntityName: line.CounterpartyName,
		},
		{
			Subsidiary: line.DestinationSubsidiary.Int64(),
			AccountID:  payable,
			Location:   line.DestinationLocation.Int64(),
			Credit:     amount,
			EntityID:   partner.Int64(),
		},
	}
}

func skipReason(line SourceLine) string {
	switch {
	case !line.DestinationSubsidiary.Valid():
		return "destination subsidiary missing"
	case !line.Subsidiary.Valid():
		return "origin subsidiary missing"
	case line.DestinationSubsidiary == line.Subsidiary:
		return "destination subsidiary matches origin"
	case !line.AccountID.Valid():
		return "account missing"
	case !line.Amount.Valid:
		return "amount missing"
	case line.Amount.Decimal.IsZero():
		return "amount is zero"
	}
	return ""
}

func firstOrigin(lines []SourceLine) ID {
	for _, line := range lines {
		if line.Subsidiary.Valid() {
			return line.Subsidiary
		}
	}
	return 0
}

func (b *Builder) log() *slog.Logger {
	if b != nil && b.logger != nil {
		return b.logger.With(slog.String("component", "icje_builder"))
	}
	return slog.Default().With(slog.String("component", "icje_builder"))
}
