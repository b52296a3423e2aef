// internal/broker/repository_test.go
//
// Unit-tests for the broker repository using sqlmock.
//
// Context
// -------
// The contract under test is totality: Brokers never errors and never
// returns an empty slice, whatever the database does.  Ordering is the
// database's job (ORDER BY in the statement), so these tests assert the
// rows come back in statement order and capped at MaxListing.
//
// Run: go test ./internal/broker -v

package broker

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var brokerCols = []string{
	"id", "name", "slug", "logo", "rating", "min_deposit",
	"description", "website_url", "sort_order", "is_featured",
	"investor_base", "founded_year",
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestBrokers_CountrySortingOrder(t *testing.T) {
	db, mock := newMock(t)

	rows := sqlmock.NewRows(brokerCols).
		AddRow(7, "Nordic Markets", "nordic-markets", "", 4.6, 0, "d", "https://nm.example", 1, true, "", 0).
		AddRow(3, "XTB", "xtb", "", 4.4, 0, "d", "https://xtb.example", 2, false, "1M+", 2002).
		AddRow(5, "eToro", "etoro", "", 4.5, 50, "d", "https://etoro.example", 3, false, "35M+", 2007)

	mock.ExpectQuery(regexp.QuoteMeta("FROM   brokers b")).
		WithArgs("SE", MaxListing).
		WillReturnRows(rows)

	got := NewRepository(db).Brokers(context.Background(), "SE")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].SortOrder > got[i].SortOrder {
			t.Fatalf("rows not ascending by sort order: %+v", got)
		}
	}
	if got[0].Name != "Nordic Markets" || !got[0].IsFeatured {
		t.Fatalf("country override not applied: %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestBrokers_QueryError_ReturnsFallback(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM   brokers b")).
		WillReturnError(errors.New("timeout"))

	got := NewRepository(db).Brokers(context.Background(), "US")
	if len(got) == 0 {
		t.Fatalf("fallback must never be empty")
	}
	if got[0].Name != Fallback()[0].Name {
		t.Fatalf("expected hardcoded fallback, got %+v", got[0])
	}
}

func TestBrokers_EmptyResult_ReturnsFallback(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM   brokers b")).
		WillReturnRows(sqlmock.NewRows(brokerCols))

	got := NewRepository(db).Brokers(context.Background(), "US")
	if len(got) != len(Fallback()) {
		t.Fatalf("len = %d, want fallback length %d", len(got), len(Fallback()))
	}
}

func TestFallback_CallersCannotMutateShared(t *testing.T) {
	a := Fallback()
	a[0].Name = "mutated"
	if b := Fallback(); b[0].Name == "mutated" {
		t.Fatalf("Fallback returned shared backing array")
	}
}

func TestRestrictions_JoinsAlternative(t *testing.T) {
	db, mock := newMock(t)

	altID := int64(2)
	rows := sqlmock.NewRows([]string{
		"broker_id", "broker_name", "country_code",
		"restriction_type", "reason", "alternative_id", "alternative_name",
	}).
		AddRow(9, "USOnly Broker", "DE", "regulatory", "No BaFin license", altID, "eToro").
		AddRow(4, "Plus500", "DE", "partial", "CFDs only", nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM   unsupported_countries uc")).
		WithArgs("DE").
		WillReturnRows(rows)

	got := NewRepository(db).Restrictions(context.Background(), "DE")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].AlternativeID == nil || *got[0].AlternativeID != altID {
		t.Fatalf("alternative broker not joined: %+v", got[0])
	}
	if got[1].AlternativeID != nil {
		t.Fatalf("nil alternative expected: %+v", got[1])
	}
}

func TestRestrictions_Error_ReturnsEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM   unsupported_countries uc")).
		WillReturnError(errors.New("timeout"))

	if got := NewRepository(db).Restrictions(context.Background(), "US"); len(got) != 0 {
		t.Fatalf("want empty slice on error, got %+v", got)
	}
}
