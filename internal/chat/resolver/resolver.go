// internal/chat/resolver/resolver.go
package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
)

var ErrCatalogUnavailable = errors.New("ENTITY_CATALOG_UNAVAILABLE")

// CatalogResolver looks up free-text entity mentions against the catalog
// table and returns the canonical code. The match is a case-insensitive
// any-alias comparison; ties break in storage order.
type CatalogResolver struct {
	db     *sql.DB
	logger logger.Logger
}

func NewCatalogResolver(db *sql.DB, log logger.Logger) *CatalogResolver {
	return &CatalogResolver{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "entity-resolver"}),
	}
}

const resolveQuery = `SELECT codigo_oficial FROM catalogo_entidades WHERE tipo_entidad = $1 AND EXISTS (SELECT 1 FROM unnest(nombres_alias) alias WHERE lower(alias) = lower($2)) ORDER BY id LIMIT 1`

// Resolve returns the canonical code for a search term, or empty when no
// alias matches. A miss is not an error; only catalog unavailability is.
func (r *CatalogResolver) Resolve(ctx context.Context, entityType, searchTerm string) (string, error) {
	searchTerm = strings.TrimSpace(searchTerm)
	if searchTerm == "" {
		return "", nil
	}

	var code string
	err := r.db.QueryRowContext(ctx, resolveQuery, entityType, searchTerm).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("no catalog match", map[string]interface{}{
				"entityType": entityType,
				"searchTerm": searchTerm,
			})
			return "", nil
		}
		return "", stderrors.NewEntityCatalogUnavailableError(entityType, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err))
	}

	return code, nil
}
