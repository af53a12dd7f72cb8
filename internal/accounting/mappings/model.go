package mappings

import "time"

const (
	// ModuleICJE scopes the intercompany journal mappings.
	ModuleICJE = "ICJE"
	// KeyAutoBalReceivable resolves the intercompany receivable clearing account.
	KeyAutoBalReceivable = "autobal.receivable"
	// KeyAutoBalPayable resolves the intercompany payable clearing account.
	KeyAutoBalPayable = "autobal.payable"
)

// AccountMapping links integration keys to ledger accounts.
type AccountMapping struct {
	Module    string
	Key       string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AutoBalancingAccounts are the clearing accounts used to balance each
// subsidiary's side of an intercompany pair.
type AutoBalancingAccounts struct {
	Receivable int64
	Payable    int64
}

// Complete reports whether both accounts are configured.
func (a AutoBalancingAccounts) Complete() bool {
	return a.Receivable > 0 && a.Payable > 0
}
