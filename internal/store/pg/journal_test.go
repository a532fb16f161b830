package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/holiman/uint256"

	"mintgate.org/internal/sale"
)

func newMockJournal(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewJournal(db), mock
}

func TestRecordPurchase(t *testing.T) {
	j, mock := newMockJournal(t)

	r := sale.Receipt{
		ID:           "rcp_01",
		Kind:         sale.PhaseWhitelist,
		Buyer:        "0xaaa",
		Units:        2,
		FirstTokenID: 5,
		Paid:         uint256.NewInt(2_000),
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec(`insert into purchases`).
		WithArgs("rcp_01", "whitelist", "0xaaa", int64(2), int64(5), "2000", r.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := j.RecordPurchase(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordAllocation(t *testing.T) {
	j, mock := newMockJournal(t)

	r := sale.Receipt{
		ID:           "rcp_02",
		Buyer:        "0xfriend",
		Units:        3,
		FirstTokenID: 7,
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec(`insert into allocations`).
		WithArgs("rcp_02", "0xfriend", int64(3), int64(7), r.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := j.RecordAllocation(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveState(t *testing.T) {
	j, mock := newMockJournal(t)

	s := sale.State{
		Owner:          "0xowner",
		AuthorityKey:   "abcd",
		BaseURI:        "ipfs://base/",
		Vault:          uint256.NewInt(4_500),
		TotalBuys:      3,
		TotalIssued:    4,
		WhitelistTotal: 2,
		PublicTotal:    1,
		WhitelistBuys:  map[string]uint64{"0xaaa": 2},
		PublicBuys:     map[string]uint64{"0xbbb": 1},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`insert into sale_state`).
		WithArgs("0xowner", "abcd", "ipfs://base/", "4500", int64(3), int64(4), int64(2), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into phase_buys`).
		WithArgs("whitelist", "0xaaa", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into phase_buys`).
		WithArgs("public", "0xbbb", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := j.SaveState(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadEmpty(t *testing.T) {
	j, mock := newMockJournal(t)

	mock.ExpectQuery(`select owner, authority_key`).
		WillReturnRows(sqlmock.NewRows([]string{"owner"}))

	_, ok, err := j.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no snapshot")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	j, mock := newMockJournal(t)

	stateRows := sqlmock.NewRows([]string{
		"owner", "authority_key", "base_uri", "vault",
		"total_buys", "total_issued", "whitelist_total", "public_total",
	}).AddRow("0xowner", "abcd", "ipfs://base/", "4500", int64(3), int64(4), int64(2), int64(1))
	mock.ExpectQuery(`select owner, authority_key`).WillReturnRows(stateRows)

	buyRows := sqlmock.NewRows([]string{"phase", "identity", "buys"}).
		AddRow("whitelist", "0xaaa", int64(2)).
		AddRow("public", "0xbbb", int64(1))
	mock.ExpectQuery(`select phase, identity, buys from phase_buys`).WillReturnRows(buyRows)

	s, ok, err := j.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected snapshot")
	}
	if s.Owner != "0xowner" || s.TotalIssued != 4 || s.WhitelistTotal != 2 {
		t.Fatalf("unexpected state %+v", s)
	}
	if s.Vault.Dec() != "4500" {
		t.Fatalf("vault=%s", s.Vault.Dec())
	}
	if s.WhitelistBuys["0xaaa"] != 2 || s.PublicBuys["0xbbb"] != 1 {
		t.Fatalf("phase buys %+v / %+v", s.WhitelistBuys, s.PublicBuys)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
