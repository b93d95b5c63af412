package commune

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/db"
	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/textnorm"
)

const (
	table         = "communes"
	selectColumns = "id, code_insee, nom, departement, code_postaux, ST_Y(geom), ST_X(geom), obsolete, contour IS NOT NULL"
)

// Commune is a row of the commune list as synchronized from the geo API.
type Commune struct {
	Code         string
	Nom          string
	Departement  string
	CodesPostaux []string
	Population   int
	Centre       *model.Point
}

// PostgresStore is the PostgreSQL implementation of Store.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMunicipality(row scanner) (model.Municipality, error) {
	var (
		m        model.Municipality
		lat, lon *float64
	)
	err := row.Scan(&m.ID, &m.Code, &m.Nom, &m.Departement, &m.CodesPostaux, &lat, &lon, &m.Obsolete, &m.HasContour)
	if err != nil {
		return m, err
	}
	if lat != nil && lon != nil {
		m.Centre = &model.Point{Lat: *lat, Lon: *lon}
	}
	return m, nil
}

func (s *PostgresStore) list(ctx context.Context, op, where string, args ...any) ([]model.Municipality, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY obsolete, code_insee", selectColumns, table, where)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "commune: %s", op)
	}
	defer rows.Close()

	var out []model.Municipality
	for rows.Next() {
		m, err := scanMunicipality(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "commune: %s: scan", op)
		}
		out = append(out, m)
	}
	return out, eris.Wrapf(rows.Err(), "commune: %s: rows", op)
}

// ByCode returns the commune with the INSEE code, or nil.
func (s *PostgresStore) ByCode(ctx context.Context, code string) (*model.Municipality, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE code_insee = $1", selectColumns, table)
	m, err := scanMunicipality(s.pool.QueryRow(ctx, sql, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "commune: by code")
	}
	return &m, nil
}

// ByPostalCode returns the communes whose postal codes contain postalCode.
func (s *PostgresStore) ByPostalCode(ctx context.Context, postalCode string) ([]model.Municipality, error) {
	return s.list(ctx, "by postal code", "$1 = ANY(code_postaux)", postalCode)
}

// ByFoldedName returns the communes whose folded name equals folded.
func (s *PostgresStore) ByFoldedName(ctx context.Context, folded string) ([]model.Municipality, error) {
	return s.list(ctx, "by name", "nom_recherche = $1", folded)
}

// WithoutContour returns the communes still lacking a contour.
func (s *PostgresStore) WithoutContour(ctx context.Context) ([]model.Municipality, error) {
	return s.list(ctx, "without contour", "NOT obsolete AND contour IS NULL")
}

// SetContour stores an EWKB multipolygon contour.
func (s *PostgresStore) SetContour(ctx context.Context, code string, contour []byte) error {
	sql := fmt.Sprintf("UPDATE %s SET contour = ST_Multi(ST_GeomFromEWKB($2)) WHERE code_insee = $1", table)
	if _, err := s.pool.Exec(ctx, sql, code, contour); err != nil {
		return eris.Wrapf(err, "commune: set contour %s", code)
	}
	return nil
}

// SetContours stores many contours keyed by INSEE code in one transaction and
// returns the number of communes updated. Unknown codes are ignored.
func (s *PostgresStore) SetContours(ctx context.Context, contours map[string][]byte) (int64, error) {
	if len(contours) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(contours))
	for code, c := range contours {
		rows = append(rows, []any{code, c})
	}

	var updated int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "CREATE TEMP TABLE _tmp_contours (code_insee text, contour bytea) ON COMMIT DROP"); err != nil {
			return eris.Wrap(err, "commune: create temp contours")
		}
		if _, err := db.CopyFrom(ctx, tx, "_tmp_contours", []string{"code_insee", "contour"}, rows); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			"UPDATE %s c SET contour = ST_Multi(ST_GeomFromEWKB(t.contour)) FROM _tmp_contours t WHERE c.code_insee = t.code_insee",
			table,
		))
		if err != nil {
			return eris.Wrap(err, "commune: update contours")
		}
		updated = tag.RowsAffected()
		return nil
	})
	return updated, err
}

// MarkObsolete flags a commune the geo API no longer knows.
func (s *PostgresStore) MarkObsolete(ctx context.Context, code string) error {
	sql := fmt.Sprintf("UPDATE %s SET obsolete = true WHERE code_insee = $1", table)
	if _, err := s.pool.Exec(ctx, sql, code); err != nil {
		return eris.Wrapf(err, "commune: mark obsolete %s", code)
	}
	return nil
}

// CountEstablishments returns the number of establishments attached to a commune.
func (s *PostgresStore) CountEstablishments(ctx context.Context, communeID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM erp WHERE commune_id = $1", communeID).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "commune: count establishments")
	}
	return n, nil
}

// Upsert inserts or refreshes communes by INSEE code. Listed communes are
// no longer obsolete.
func (s *PostgresStore) Upsert(ctx context.Context, communes []Commune) (int64, error) {
	rows := make([][]any, 0, len(communes))
	for _, c := range communes {
		var centre []byte
		if c.Centre != nil {
			var err error
			if centre, err = PointEWKB(*c.Centre); err != nil {
				return 0, err
			}
		}
		rows = append(rows, []any{
			c.Code, c.Nom, textnorm.Fold(c.Nom), c.Departement, c.CodesPostaux, c.Population, centre, false,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        table,
		Columns:      []string{"code_insee", "nom", "nom_recherche", "departement", "code_postaux", "population", "geom", "obsolete"},
		ConflictKeys: []string{"code_insee"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "commune: upsert")
	}
	return n, nil
}
