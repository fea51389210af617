// internal/chat/resolver/resolver_test.go
package resolver

import (
	"context"
	"errors"
	"regexp"
	"testing"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestResolver(t *testing.T) (*CatalogResolver, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewCatalogResolver(db, logger.NewTestLogger(t)), mock
}

var resolvePattern = regexp.QuoteMeta(resolveQuery)

// ==========================
// Core Functionality Tests
// ==========================

func TestCatalogResolver_Resolve_AliasMatch(t *testing.T) {
	resolver, mock := createTestResolver(t)

	mock.ExpectQuery(resolvePattern).
		WithArgs("CURSO", "MATEMATICA 1").
		WillReturnRows(sqlmock.NewRows([]string{"codigo_oficial"}).AddRow("MAT101"))

	code, err := resolver.Resolve(context.Background(), "CURSO", "MATEMATICA 1")

	assert.NoError(t, err)
	assert.Equal(t, "MAT101", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogResolver_Resolve_NoMatchIsNotAnError(t *testing.T) {
	resolver, mock := createTestResolver(t)

	mock.ExpectQuery(resolvePattern).
		WithArgs("CURSO", "ALQUIMIA AVANZADA").
		WillReturnRows(sqlmock.NewRows([]string{"codigo_oficial"}))

	code, err := resolver.Resolve(context.Background(), "CURSO", "ALQUIMIA AVANZADA")

	assert.NoError(t, err, "a miss is not a failure")
	assert.Equal(t, "", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogResolver_Resolve_TrimsSearchTerm(t *testing.T) {
	resolver, mock := createTestResolver(t)

	mock.ExpectQuery(resolvePattern).
		WithArgs("CURSO", "MATEMATICA 1").
		WillReturnRows(sqlmock.NewRows([]string{"codigo_oficial"}).AddRow("MAT101"))

	code, err := resolver.Resolve(context.Background(), "CURSO", "  MATEMATICA 1  ")

	assert.NoError(t, err)
	assert.Equal(t, "MAT101", code)
}

func TestCatalogResolver_Resolve_EmptyTermShortCircuits(t *testing.T) {
	resolver, mock := createTestResolver(t)

	code, err := resolver.Resolve(context.Background(), "CURSO", "   ")

	assert.NoError(t, err)
	assert.Equal(t, "", code)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query must be issued for an empty term")
}

// ==========================
// Error Handling Tests
// ==========================

func TestCatalogResolver_Resolve_CatalogUnavailable(t *testing.T) {
	resolver, mock := createTestResolver(t)

	mock.ExpectQuery(resolvePattern).
		WithArgs("CURSO", "MATEMATICA 1").
		WillReturnError(errors.New("connection reset by peer"))

	code, err := resolver.Resolve(context.Background(), "CURSO", "MATEMATICA 1")

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, stderrors.ErrCodeEntityCatalogUnavailable, stderrors.CodeOf(err))
	assert.True(t, stderrors.IsRetryable(err), "catalog outages are transient")
	assert.Equal(t, "", code)
}
