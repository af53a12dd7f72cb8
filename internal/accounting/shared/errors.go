package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrSubsidiaryUnbalanced indicates one subsidiary's postings do not net to zero.
	ErrSubsidiaryUnbalanced = errors.New("accounting: subsidiary postings must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
	// ErrSubsidiaryNotFound indicates the subsidiary record does not exist.
	ErrSubsidiaryNotFound = errors.New("accounting: subsidiary not found")
	// ErrBillNotFound indicates the vendor bill does not exist.
	ErrBillNotFound = errors.New("accounting: vendor bill not found")
)
