package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/store"
)

func newPostgresStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	return store.New(sqlx.NewDb(mockDB, "postgres")), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgres_SaveUsesDollarPlaceholders(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO news_articles .+ VALUES \(\$1, \$2, .+ ON CONFLICT \(url\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO news_articles`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := s.Save(context.Background(), []domain.Article{
		article("https://a.example/1", "finance", now),
		article("https://a.example/1", "finance", now),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Save() = %d, want 1", n)
	}
	expectationsMet(t, mock)
}

func TestPostgres_SaveRollsBackOnError(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO news_articles`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := s.Save(context.Background(), []domain.Article{article("https://a.example/1", "finance", now)}); err == nil {
		t.Fatal("Save() error = nil")
	}
	expectationsMet(t, mock)
}

func TestPostgres_EnsureSchema(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS news_articles .+BIGSERIAL`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_news_articles_crawl_time`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_news_articles_category`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS crawl_history`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgres_MarkPushedExpandsIDs(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectExec(`UPDATE news_articles SET is_pushed = TRUE, push_time = \$1 WHERE id IN \(\$2, \$3\)`).
		WithArgs(sqlmock.AnyArg(), int64(4), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := s.MarkPushed(context.Background(), []int64{4, 7}); err != nil {
		t.Fatalf("MarkPushed() error = %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgres_ExistsError(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM news_articles WHERE url = \$1`).
		WithArgs("https://a.example/1").
		WillReturnError(errors.New("timeout"))

	if _, err := s.Exists(context.Background(), "https://a.example/1"); err == nil {
		t.Error("Exists() error = nil")
	}
	expectationsMet(t, mock)
}
