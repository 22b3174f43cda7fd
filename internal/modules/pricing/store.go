// README: Optional tier catalog override backed by PostgreSQL.
package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// LoadTiers reads the vehicle_tiers table in display order.
func (s *Store) LoadTiers(ctx context.Context) ([]Tier, error) {
	rows, err := s.db.Query(ctx, `
        SELECT name, min_km, max_km
        FROM vehicle_tiers
        WHERE enabled
        ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query vehicle_tiers: %w", err)
	}
	defer rows.Close()

	var tiers []Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.Name, &t.MinKm, &t.MaxKm); err != nil {
			return nil, fmt.Errorf("scan vehicle_tiers: %w", err)
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read vehicle_tiers: %w", err)
	}
	return tiers, nil
}

// LoadCatalog returns the stored catalog, or the built-in one when the store
// is nil or the table is empty.
func LoadCatalog(ctx context.Context, s *Store) (*Catalog, error) {
	if s == nil {
		return DefaultCatalog(), nil
	}
	tiers, err := s.LoadTiers(ctx)
	if err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return DefaultCatalog(), nil
	}
	return NewCatalog(tiers), nil
}
