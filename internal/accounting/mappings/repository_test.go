package mappings

import (
	"context"
	"errors"
	"testing"

	"github.com/odyssey-erp/interco/internal/accounting/shared"
)

type stubRepo struct {
	accounts map[string]int64
}

func (r stubRepo) Get(ctx context.Context, module, key string) (AccountMapping, error) {
	id, ok := r.accounts[module+"/"+key]
	if !ok {
		return AccountMapping{}, shared.ErrMappingNotFound
	}
	return AccountMapping{Module: module, Key: key, AccountID: id}, nil
}

func TestAutoBalancingResolvesBothAccounts(t *testing.T) {
	reader := NewAutoBalancingReader(stubRepo{accounts: map[string]int64{
		"ICJE/autobal.receivable": 1400,
		"ICJE/autobal.payable":    2400,
	}})
	accounts, err := reader.AutoBalancing(context.Background())
	if err != nil {
		t.Fatalf("auto balancing: %v", err)
	}
	if accounts.Receivable != 1400 || accounts.Payable != 2400 || !accounts.Complete() {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
}

func TestAutoBalancingMissingPayable(t *testing.T) {
	reader := NewAutoBalancingReader(stubRepo{accounts: map[string]int64{
		"ICJE/autobal.receivable": 1400,
	}})
	_, err := reader.AutoBalancing(context.Background())
	if !errors.Is(err, shared.ErrMappingNotFound) {
		t.Fatalf("expected ErrMappingNotFound, got %v", err)
	}
}
