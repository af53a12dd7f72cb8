package interco

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/interco/internal/accounting/journals"
	"github.com/odyssey-erp/interco/internal/accounting/mappings"
	acctshared "github.com/odyssey-erp/interco/internal/accounting/shared"
	"github.com/odyssey-erp/interco/internal/shared"
)

const (
	testReceivable int64 = 1400
	testPayable    int64 = 2400
)

var testDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func amount(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func srcLine(billID ID, no int, origin, destination ID, value string) SourceLine {
	l := SourceLine{
		BillID:                billID,
		LineNo:                no,
		Subsidiary:            origin,
		DestinationSubsidiary: destination,
		AccountID:             6100,
		Department:            11,
		Location:              21,
		DestinationDepartment: 12,
		DestinationLocation:   22,
		Memo:                  fmt.Sprintf("line %d", no),
		CounterpartyID:        900,
		CounterpartyName:      "Acme Supplies",
		TranDate:              testDate,
		PostingPeriodID:       3,
	}
	if value != "" {
		l.Amount = amount(value)
	}
	return l
}

type fakePartners struct {
	mu       sync.Mutex
	partners map[ID]ID
	err      error
	calls    map[ID]int
}

func (f *fakePartners) InterEntityPartner(_ context.Context, subsidiaryID ID) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[ID]int)
	}
	f.calls[subsidiaryID]++
	if f.err != nil {
		return 0, f.err
	}
	partner, ok := f.partners[subsidiaryID]
	if !ok {
		return 0, acctshared.ErrSubsidiaryNotFound
	}
	return partner, nil
}

type fakePeriods struct {
	open  map[int64]bool
	err   error
	calls int
}

func (f *fakePeriods) SelectOpenPeriod(_ context.Context, requested int64) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if f.open[requested] {
		return requested, nil
	}
	return 0, nil
}

type fakeAccounts struct {
	accounts mappings.AutoBalancingAccounts
	err      error
}

func (f fakeAccounts) AutoBalancing(context.Context) (mappings.AutoBalancingAccounts, error) {
	return f.accounts, f.err
}

func configuredAccounts() fakeAccounts {
	return fakeAccounts{accounts: mappings.AutoBalancingAccounts{Receivable: testReceivable, Payable: testPayable}}
}

// callLog records store and bill operations in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(format string, args ...any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *callLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeStore struct {
	mu        sync.Mutex
	log       *callLog
	nextID    int64
	docs      map[int64]journals.Document
	getErr    error
	setErr    error
	createErr error
	listErr   error
	setErrFor map[int64]error
}

func newFakeStore(log *callLog) *fakeStore {
	return &fakeStore{log: log, nextID: 500, docs: make(map[int64]journals.Document)}
}

func (f *fakeStore) Get(_ context.Context, id int64) (journals.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("get %d", id)
	if f.getErr != nil {
		return journals.Document{}, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return journals.Document{}, acctshared.ErrJournalNotFound
	}
	return doc, nil
}

func (f *fakeStore) SetReversalDate(_ context.Context, id int64, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("reverse %d", id)
	if f.setErr != nil {
		return f.setErr
	}
	if err := f.setErrFor[id]; err != nil {
		return err
	}
	doc, ok := f.docs[id]
	if !ok {
		return acctshared.ErrJournalNotFound
	}
	doc.ReversalDate = &date
	f.docs[id] = doc
	return nil
}

func (f *fakeStore) Create(_ context.Context, doc journals.Document) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("create bill %d", doc.BillID)
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	doc.ID = f.nextID
	f.docs[doc.ID] = doc
	return doc.ID, nil
}

func (f *fakeStore) UnreversedForBill(_ context.Context, billID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []int64
	for id, doc := range f.docs {
		if doc.BillID == billID && doc.ReversalDate == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) doc(id int64) (journals.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	return doc, ok
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakeBills struct {
	mu          sync.Mutex
	log         *callLog
	links       map[ID]ID
	markers     map[ID]string
	linkErr     error
	markerErrs  int
	markerCalls int
}

func newFakeBills(log *callLog) *fakeBills {
	return &fakeBills{log: log, links: make(map[ID]ID), markers: make(map[ID]string)}
}

func (f *fakeBills) LinkJournal(_ context.Context, billID, journalID ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("link %d -> %d", billID, journalID)
	if f.linkErr != nil {
		return f.linkErr
	}
	f.links[billID] = journalID
	delete(f.markers, billID)
	return nil
}

func (f *fakeBills) ClearLink(_ context.Context, billID ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("clear %d", billID)
	delete(f.links, billID)
	delete(f.markers, billID)
	return nil
}

func (f *fakeBills) SetErrorMarker(_ context.Context, billID ID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markerCalls++
	if f.markerErrs > 0 {
		f.markerErrs--
		return fmt.Errorf("marker write failed")
	}
	f.markers[billID] = message
	return nil
}

func (f *fakeBills) link(billID ID) (ID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.links[billID]
	return id, ok
}

func (f *fakeBills) marker(billID ID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markers[billID]
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
	err     error
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, log)
	return f.err
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action+":"+e.Entity+":"+e.EntityID)
	}
	return out
}

func newTestBuilder(partners *fakePartners, periods *fakePeriods, accounts AccountConfig) *Builder {
	return NewBuilder(NewLookup(partners, periods), accounts, discardLogger())
}

func defaultPartners() *fakePartners {
	return &fakePartners{partners: map[ID]ID{1: 71, 2: 72, 3: 73}}
}

func defaultPeriods() *fakePeriods {
	return &fakePeriods{open: map[int64]bool{3: true}}
}
