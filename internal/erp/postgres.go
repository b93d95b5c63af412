package erp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/db"
	"github.com/acceslibre/erpsync/internal/model"
)

const selectEstablishment = `SELECT e.id, e.uuid, e.nom, COALESCE(act.nom, ''), e.source, e.source_id,
	COALESCE(e.asp_id, ''), e.siret, e.numero, e.voie, e.lieu_dit, e.code_postal, e.code_insee,
	e.commune, e.commune_id, e.telephone, e.contact_email, e.contact_url, e.site_internet,
	e.import_email, ST_Y(e.geom), ST_X(e.geom), e.geoloc_provider, e.ban_id, e.published,
	e.permanently_closed, e.user_type, e.metadata, COALESCE(acc.answers, '{}'::jsonb),
	acc.id IS NOT NULL, COALESCE(acc.completion_rate, 0), e.created_at, e.updated_at
FROM erp e
LEFT JOIN activites act ON act.id = e.activite_id
LEFT JOIN accessibilite acc ON acc.erp_id = e.id`

// PostgresRepository is the PostgreSQL/PostGIS Repository.
type PostgresRepository struct {
	pool db.Pool
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// WithTx implements Repository.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PostgresRepository{pool: tx})
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEstablishment(row scanner) (*model.Establishment, error) {
	var (
		e        model.Establishment
		userType string
		lat, lon *float64
		answers  access.Answers
	)
	err := row.Scan(
		&e.ID, &e.UUID, &e.Nom, &e.Activite, &e.Source, &e.SourceID,
		&e.ASPID, &e.Siret, &e.Numero, &e.Voie, &e.LieuDit, &e.CodePostal, &e.CodeInsee,
		&e.Commune, &e.CommuneID, &e.Telephone, &e.ContactEmail, &e.ContactURL, &e.SiteInternet,
		&e.ImportEmail, &lat, &lon, &e.GeocodeProvider, &e.BANID, &e.Published,
		&e.PermanentlyClosed, &userType, &e.Metadata, &answers,
		&e.HasAccessibility, &e.CompletionRate, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.UserType = model.UserType(userType)
	if lat != nil && lon != nil {
		e.Geom = &model.Point{Lat: *lat, Lon: *lon}
	}
	e.Accessibility = answers
	return &e, nil
}

func (r *PostgresRepository) one(ctx context.Context, op, where string, args ...any) (*model.Establishment, error) {
	e, err := scanEstablishment(r.pool.QueryRow(ctx, selectEstablishment+" WHERE "+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "erp: %s", op)
	}
	return e, nil
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*model.Establishment, error) {
	return r.one(ctx, "get", "e.id = $1", id)
}

// BySource implements Repository.
func (r *PostgresRepository) BySource(ctx context.Context, source, sourceID string) (*model.Establishment, error) {
	if source == "" || sourceID == "" {
		return nil, nil
	}
	return r.one(ctx, "by source",
		`((e.source = $1 AND e.source_id = $2)
		OR e.id IN (SELECT erp_id FROM erp_sources WHERE source = $1 AND source_id = $2))
		ORDER BY e.published DESC, e.id LIMIT 1`,
		source, sourceID)
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// arg registers v and returns its placeholder.
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) eqFold(column, value string) {
	if value != "" {
		w.add(fmt.Sprintf("lower(%s) = lower(%s)", column, w.arg(value)))
	}
}

// exactAddress matches the numero exactly and the voie OR the lieu-dit.
func (w *whereBuilder) exactAddress(a *model.Address) {
	if a.Numero == "" {
		w.add("COALESCE(e.numero, '') = ''")
	} else {
		w.eqFold("e.numero", a.Numero)
	}
	var either []string
	if a.Voie != "" {
		either = append(either, fmt.Sprintf("lower(e.voie) = lower(%s)", w.arg(a.Voie)))
	}
	if a.LieuDit != "" {
		either = append(either, fmt.Sprintf("lower(e.lieu_dit) = lower(%s)", w.arg(a.LieuDit)))
	}
	if len(either) > 0 {
		w.add("(" + strings.Join(either, " OR ") + ")")
	}
	w.eqFold("e.code_postal", a.CodePostal)
	w.eqFold("e.commune", a.Commune)
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return "true"
	}
	return strings.Join(w.conds, " AND ")
}

func buildFind(f Filter) (string, []any) {
	w := &whereBuilder{}

	if len(f.Noms) > 0 {
		lowered := make([]string, len(f.Noms))
		for i, n := range f.Noms {
			lowered[i] = strings.ToLower(n)
		}
		w.add(fmt.Sprintf("lower(e.nom) = ANY(%s)", w.arg(lowered)))
	}
	w.eqFold("act.nom", f.Activite)
	if a := f.Address; a != nil && f.ExactAddress {
		w.exactAddress(a)
	} else if a != nil {
		w.eqFold("e.numero", a.Numero)
		w.eqFold("e.voie", a.Voie)
		w.eqFold("e.lieu_dit", a.LieuDit)
		w.eqFold("e.code_postal", a.CodePostal)
		w.eqFold("e.commune", a.Commune)
	}
	if f.CodePostal != "" {
		w.add("e.code_postal = " + w.arg(f.CodePostal))
	}
	w.eqFold("e.commune", f.Commune)
	if f.CommuneID != 0 {
		w.add("e.commune_id = " + w.arg(f.CommuneID))
	}
	if f.ExcludeID != 0 {
		w.add("e.id <> " + w.arg(f.ExcludeID))
	}
	if f.ExcludeSource != "" {
		w.add("e.source <> " + w.arg(f.ExcludeSource))
	}
	if len(f.MetadataPath) > 0 {
		w.add(fmt.Sprintf("e.metadata #>> %s = %s", w.arg(f.MetadataPath), w.arg(f.MetadataValue)))
	}
	if f.Published != nil {
		w.add("e.published = " + w.arg(*f.Published))
	}
	if f.WithAccessibility {
		w.add("acc.id IS NOT NULL")
	}

	order := "e.id"
	if f.Near != nil {
		lon, lat := w.arg(f.Near.Lon), w.arg(f.Near.Lat)
		point := fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s, %s), 4326)", lon, lat)
		w.add(fmt.Sprintf("ST_DWithin(e.geom::geography, %s::geography, %s)", point, w.arg(f.Radius)))
		order = "e.geom <-> " + point
	}

	sql := selectEstablishment + " WHERE " + w.sql() + " ORDER BY " + order
	if f.Limit > 0 {
		sql += " LIMIT " + w.arg(f.Limit)
	}
	return sql, w.args
}

// Find implements Repository.
func (r *PostgresRepository) Find(ctx context.Context, f Filter) ([]model.Establishment, error) {
	sql, args := buildFind(f)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "erp: find")
	}
	defer rows.Close()

	var out []model.Establishment
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "erp: find: scan")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "erp: find: rows")
}

// ActivityExists implements Repository.
func (r *PostgresRepository) ActivityExists(ctx context.Context, nom string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM activites WHERE lower(nom) = lower($1))", nom).Scan(&ok)
	if err != nil {
		return false, eris.Wrap(err, "erp: activity exists")
	}
	return ok, nil
}

// SweepIDs implements Repository.
func (r *PostgresRepository) SweepIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, "SELECT id FROM erp WHERE published OR permanently_closed ORDER BY created_at, id")
	if err != nil {
		return nil, eris.Wrap(err, "erp: sweep ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "erp: sweep ids: scan")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "erp: sweep ids: rows")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func coords(p *model.Point) (lat, lon *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Lat, &p.Lon
}

func metadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func userType(u model.UserType) string {
	if u == "" {
		return string(model.UserTypeSystem)
	}
	return string(u)
}

const insertEstablishment = `INSERT INTO erp (
	uuid, nom, activite_id, source, source_id, asp_id, siret, numero, voie, lieu_dit,
	code_postal, code_insee, commune, commune_id, telephone, contact_email, contact_url,
	site_internet, import_email, geom, geoloc_provider, ban_id, published,
	permanently_closed, user_type, metadata
) VALUES (
	$1, $2, (SELECT id FROM activites WHERE lower(nom) = lower($3)), $4, $5, $6, $7, $8, $9, $10,
	$11, $12, $13, $14, $15, $16, $17,
	$18, $19, ST_SetSRID(ST_MakePoint($21, $20), 4326), $22, $23, $24,
	$25, $26, $27
) RETURNING id, created_at, updated_at`

// Create implements Repository. Accessibility answers, when any, are stored
// alongside.
func (r *PostgresRepository) Create(ctx context.Context, rec *model.Record) (*model.Establishment, error) {
	e := &model.Establishment{UUID: uuid.New(), Record: *rec}
	e.UserType = model.UserType(userType(rec.UserType))
	lat, lon := coords(rec.Geom)

	err := r.pool.QueryRow(ctx, insertEstablishment,
		e.UUID, rec.Nom, rec.Activite, rec.Source, rec.SourceID, nullable(rec.ASPID), rec.Siret,
		rec.Numero, rec.Voie, rec.LieuDit, rec.CodePostal, rec.CodeInsee, rec.Commune, rec.CommuneID,
		rec.Telephone, rec.ContactEmail, rec.ContactURL, rec.SiteInternet, rec.ImportEmail,
		lat, lon, rec.GeocodeProvider, rec.BANID, rec.Published, rec.PermanentlyClosed,
		string(e.UserType), metadata(rec.Metadata),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, &model.StorageError{Op: "create", Err: err}
	}

	if rec.Accessibility.Any() {
		if err := r.saveAccessibility(ctx, e.ID, rec.Accessibility); err != nil {
			return nil, err
		}
		e.HasAccessibility = true
		e.CompletionRate = rec.Accessibility.CompletionRate()
	}
	return e, nil
}

const updateEstablishment = `UPDATE erp SET
	nom = $2, activite_id = (SELECT id FROM activites WHERE lower(nom) = lower($3)),
	source = $4, source_id = $5, asp_id = $6, siret = $7, numero = $8, voie = $9, lieu_dit = $10,
	code_postal = $11, code_insee = $12, commune = $13, commune_id = $14, telephone = $15,
	contact_email = $16, contact_url = $17, site_internet = $18, import_email = $19,
	geom = ST_SetSRID(ST_MakePoint($21, $20), 4326), geoloc_provider = $22, ban_id = $23,
	published = $24, permanently_closed = $25, user_type = $26, metadata = $27, updated_at = now()
WHERE id = $1`

// Update implements Repository. The accessibility row is replaced by the
// establishment's answers.
func (r *PostgresRepository) Update(ctx context.Context, e *model.Establishment) error {
	lat, lon := coords(e.Geom)
	tag, err := r.pool.Exec(ctx, updateEstablishment,
		e.ID, e.Nom, e.Activite, e.Source, e.SourceID, nullable(e.ASPID), e.Siret,
		e.Numero, e.Voie, e.LieuDit, e.CodePostal, e.CodeInsee, e.Commune, e.CommuneID,
		e.Telephone, e.ContactEmail, e.ContactURL, e.SiteInternet, e.ImportEmail,
		lat, lon, e.GeocodeProvider, e.BANID, e.Published, e.PermanentlyClosed,
		userType(e.UserType), metadata(e.Metadata),
	)
	if err != nil {
		return &model.StorageError{Op: "update", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &model.StorageError{Op: "update", Err: eris.Errorf("establishment %d not found", e.ID)}
	}
	e.UpdatedAt = time.Now()

	if err := r.saveAccessibility(ctx, e.ID, e.Accessibility); err != nil {
		return err
	}
	e.HasAccessibility = true
	e.CompletionRate = e.Accessibility.CompletionRate()
	return nil
}

func (r *PostgresRepository) saveAccessibility(ctx context.Context, id int64, a access.Answers) error {
	if a == nil {
		a = access.Answers{}
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO accessibilite (erp_id, answers, completion_rate) VALUES ($1, $2, $3)
		ON CONFLICT (erp_id) DO UPDATE SET answers = EXCLUDED.answers,
		completion_rate = EXCLUDED.completion_rate, updated_at = now()`,
		id, map[string]any(a), a.CompletionRate())
	if err != nil {
		return &model.StorageError{Op: "save accessibility", Err: err}
	}
	return nil
}

// SetPublished implements Repository.
func (r *PostgresRepository) SetPublished(ctx context.Context, id int64, published bool) error {
	if _, err := r.pool.Exec(ctx, "UPDATE erp SET published = $2, updated_at = now() WHERE id = $1", id, published); err != nil {
		return &model.StorageError{Op: "set published", Err: err}
	}
	return nil
}

// Delete implements Repository. Accessibility and source links cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM erp WHERE id = $1", id); err != nil {
		return &model.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// ReplaceSourceLink implements Repository.
func (r *PostgresRepository) ReplaceSourceLink(ctx context.Context, id int64, source, sourceID string) error {
	if source == "" || sourceID == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx,
		"DELETE FROM erp_sources WHERE source = $1 AND (erp_id = $2 OR source_id = $3)",
		source, id, sourceID,
	); err != nil {
		return &model.StorageError{Op: "unlink source", Err: err}
	}
	if _, err := r.pool.Exec(ctx,
		"INSERT INTO erp_sources (erp_id, source, source_id) VALUES ($1, $2, $3)",
		id, source, sourceID,
	); err != nil {
		return &model.StorageError{Op: "link source", Err: err}
	}
	return nil
}

// EnsureAccessibility implements Repository.
func (r *PostgresRepository) EnsureAccessibility(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx,
		"INSERT INTO accessibilite (erp_id) VALUES ($1) ON CONFLICT (erp_id) DO NOTHING", id,
	); err != nil {
		return &model.StorageError{Op: "ensure accessibility", Err: err}
	}
	return nil
}

// SetCompletionRate implements Repository.
func (r *PostgresRepository) SetCompletionRate(ctx context.Context, id int64, rate int) error {
	if _, err := r.pool.Exec(ctx,
		"UPDATE accessibilite SET completion_rate = $2 WHERE erp_id = $1", id, rate,
	); err != nil {
		return &model.StorageError{Op: "completion rate", Err: err}
	}
	return nil
}
