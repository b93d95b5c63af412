package erp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var establishmentCols = []string{
	"id", "uuid", "nom", "activite", "source", "source_id",
	"asp_id", "siret", "numero", "voie", "lieu_dit", "code_postal", "code_insee",
	"commune", "commune_id", "telephone", "contact_email", "contact_url", "site_internet",
	"import_email", "lat", "lon", "geoloc_provider", "ban_id", "published",
	"permanently_closed", "user_type", "metadata", "answers",
	"has_accessibilite", "completion_rate", "created_at", "updated_at",
}

func ptr[T any](v T) *T { return &v }

func mairieRow(rows *pgxmock.Rows, id int64) *pgxmock.Rows {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, uuid.MustParse("8c4c2c0e-6e39-4b8a-9a57-3f3f0a3c1e11"), "Mairie", "Mairie", model.SourceGendarmerie, "G-1",
		"", "", "1", "Place de la Mairie", "", "01500", "01004",
		"Ambérieu-en-Bugey", ptr(int64(3)), "0474000000", "", "", "",
		"", ptr(45.96), ptr(5.37), "ban", "01004_0001", true,
		false, "gestionnaire", map[string]any{"k": "v"}, access.Answers{"entree_plain_pied": true},
		true, 10, created, created,
	)
}

func TestPostgresRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`(?s)FROM erp e\s+LEFT JOIN activites act .* WHERE e.id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(mairieRow(pgxmock.NewRows(establishmentCols), 7))
	mock.ExpectQuery(`WHERE e.id = \$1`).
		WithArgs(int64(8)).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	e, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, int64(7), e.ID)
	assert.Equal(t, "Place de la Mairie", e.Voie)
	assert.Equal(t, model.UserTypeGestionnaire, e.UserType)
	assert.Equal(t, &model.Point{Lat: 45.96, Lon: 5.37}, e.Geom)
	assert.Equal(t, int64(3), *e.CommuneID)
	assert.True(t, e.HasAccessibility)
	assert.Equal(t, true, e.Accessibility.Get("entree_plain_pied"))

	e, err = repo.Get(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_BySource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`(?s)e.source = \$1 AND e.source_id = \$2.*erp_sources.*ORDER BY e.published DESC`).
		WithArgs(model.SourceGendarmerie, "G-1").
		WillReturnRows(mairieRow(pgxmock.NewRows(establishmentCols), 7))

	repo := NewPostgresRepository(mock)
	e, err := repo.BySource(context.Background(), model.SourceGendarmerie, "G-1")
	require.NoError(t, err)
	require.NotNil(t, e)

	e, err = repo.BySource(context.Background(), model.SourceGendarmerie, "")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildFind(t *testing.T) {
	sql, args := buildFind(Filter{
		Noms:              []string{"Mairie de Lyon", "mairie - lyon"},
		Activite:          "Mairie",
		CommuneID:         3,
		ExcludeID:         7,
		Published:         Published(true),
		WithAccessibility: true,
		Near:              &model.Point{Lat: 45.76, Lon: 4.83},
		Radius:            500,
		Limit:             10,
	})

	assert.Contains(t, sql, "lower(e.nom) = ANY($1)")
	assert.Contains(t, sql, "lower(act.nom) = lower($2)")
	assert.Contains(t, sql, "e.commune_id = $3")
	assert.Contains(t, sql, "e.id <> $4")
	assert.Contains(t, sql, "e.published = $5")
	assert.Contains(t, sql, "acc.id IS NOT NULL")
	assert.Contains(t, sql, "ST_DWithin(e.geom::geography, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8)")
	assert.Contains(t, sql, "ORDER BY e.geom <-> ST_SetSRID(ST_MakePoint($6, $7), 4326) LIMIT $9")
	assert.Equal(t, []any{
		[]string{"mairie de lyon", "mairie - lyon"}, "Mairie", int64(3), int64(7), true, 4.83, 45.76, 500.0, 10,
	}, args)
}

func TestBuildFind_AddressAndMetadata(t *testing.T) {
	sql, args := buildFind(Filter{
		Address:       &model.Address{Voie: "Rue Neuve", CodePostal: "01500"},
		MetadataPath:  []string{"service_public", "ancien_code_pivot"},
		MetadataValue: "mairie-01004-01",
		ExcludeSource: model.SourceGendarmerie,
	})
	assert.Contains(t, sql, "lower(e.voie) = lower($1)")
	assert.Contains(t, sql, "lower(e.code_postal) = lower($2)")
	assert.Contains(t, sql, "e.source <> $3")
	assert.Contains(t, sql, "e.metadata #>> $4 = $5")
	assert.Contains(t, sql, "ORDER BY e.id")
	assert.Len(t, args, 5)

	sql, args = buildFind(Filter{})
	assert.Contains(t, sql, "WHERE true ORDER BY e.id")
	assert.Empty(t, args)
}

func TestBuildFind_ExactAddress(t *testing.T) {
	sql, args := buildFind(Filter{
		Activite:     "Pharmacie",
		Address:      &model.Address{Voie: "Rue Nationale", LieuDit: "Le Bourg", Commune: "Lunel"},
		ExactAddress: true,
	})
	assert.Contains(t, sql, "lower(act.nom) = lower($1)")
	assert.Contains(t, sql, "COALESCE(e.numero, '') = ''")
	assert.Contains(t, sql, "(lower(e.voie) = lower($2) OR lower(e.lieu_dit) = lower($3))")
	assert.Contains(t, sql, "lower(e.commune) = lower($4)")
	assert.Equal(t, []any{"Pharmacie", "Rue Nationale", "Le Bourg", "Lunel"}, args)

	sql, args = buildFind(Filter{
		Address:      &model.Address{Numero: "3", Voie: "Rue Nationale"},
		ExactAddress: true,
	})
	assert.Contains(t, sql, "lower(e.numero) = lower($1)")
	assert.Contains(t, sql, "(lower(e.voie) = lower($2))")
	assert.NotContains(t, sql, "COALESCE")
	assert.Equal(t, []any{"3", "Rue Nationale"}, args)
}

func TestPostgresRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT INTO erp \(.*ST_SetSRID\(ST_MakePoint\(\$21, \$20\), 4326\).*RETURNING id, created_at, updated_at`).
		WithArgs(
			pgxmock.AnyArg(), "Mairie", "Mairie", model.SourceGendarmerie, "G-1", (*string)(nil), "",
			"", "Rue Neuve", "", "01500", "", "Ambérieu-en-Bugey", (*int64)(nil),
			"", "", "", "", "",
			ptr(45.96), ptr(5.37), "", "", false, false,
			string(model.UserTypeSystem), map[string]any{},
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))
	mock.ExpectExec(`INSERT INTO accessibilite`).
		WithArgs(int64(42), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.Record{
		Nom: "Mairie", Activite: "Mairie", Source: model.SourceGendarmerie, SourceID: "G-1",
		Address:       model.Address{Voie: "Rue Neuve", CodePostal: "01500", Commune: "Ambérieu-en-Bugey"},
		Geom:          &model.Point{Lat: 45.96, Lon: 5.37},
		Accessibility: access.Answers{"entree_plain_pied": true},
	}
	e, err := NewPostgresRepository(mock).Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(42), e.ID)
	assert.NotEqual(t, uuid.Nil, e.UUID)
	assert.Equal(t, model.UserTypeSystem, e.UserType)
	assert.True(t, e.HasAccessibility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateStorageError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO erp`).WillReturnError(errors.New("duplicate key value"))

	_, err = NewPostgresRepository(mock).Create(context.Background(), &model.Record{Nom: "x"})
	require.Error(t, err)
	assert.Equal(t, model.KindStorage, model.Kind(err))
}

// updateArgs lists the UPDATE arguments of an establishment without
// address, contact or location.
func updateArgs(id int64, nom, activite, source, sourceID string, aspID *string) []any {
	return []any{
		id, nom, activite, source, sourceID, aspID, "",
		"", "", "", "", "", "", (*int64)(nil),
		"", "", "", "", "",
		(*float64)(nil), (*float64)(nil), "", "", false, false,
		string(model.UserTypeSystem), map[string]any{},
	}
}

func TestPostgresRepository_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`(?s)UPDATE erp SET.*WHERE id = \$1`).
		WithArgs(updateArgs(7, "Mairie", "Mairie", model.SourceAcceslibre, "abc", ptr("A-12"))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`(?s)INSERT INTO accessibilite .* ON CONFLICT \(erp_id\) DO UPDATE`).
		WithArgs(int64(7), map[string]any{"conformite": true}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE erp SET`).
		WithArgs(updateArgs(8, "", "", "", "", nil)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresRepository(mock)
	e := &model.Establishment{ID: 7, Record: model.Record{
		Nom: "Mairie", Activite: "Mairie", Source: model.SourceAcceslibre, SourceID: "abc", ASPID: "A-12",
		Accessibility: access.Answers{"conformite": true},
	}}
	require.NoError(t, repo.Update(context.Background(), e))
	assert.True(t, e.HasAccessibility)

	err = repo.Update(context.Background(), &model.Establishment{ID: 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReplaceSourceLink(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM erp_sources WHERE source = \$1 AND \(erp_id = \$2 OR source_id = \$3\)`).
		WithArgs("gendarmerie", int64(7), "G-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO erp_sources`).
		WithArgs(int64(7), "gendarmerie", "G-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresRepository(mock).ReplaceSourceLink(context.Background(), 7, "gendarmerie", "G-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_WithTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accessibilite \(erp_id\) VALUES \(\$1\) ON CONFLICT \(erp_id\) DO NOTHING`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE accessibilite SET completion_rate = \$2`).
		WithArgs(int64(7), 25).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE erp SET published = \$2`).
		WithArgs(int64(7), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	repo := NewPostgresRepository(mock)
	err = repo.WithTx(context.Background(), func(tx Repository) error {
		if err := tx.EnsureAccessibility(context.Background(), 7); err != nil {
			return err
		}
		return tx.SetCompletionRate(context.Background(), 7, 25)
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repo.WithTx(context.Background(), func(tx Repository) error {
		if err := tx.SetPublished(context.Background(), 7, false); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SweepIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id FROM erp WHERE published OR permanently_closed ORDER BY created_at`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM activites`).
		WithArgs("Mairie").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPostgresRepository(mock)
	ids, err := repo.SweepIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids)

	ok, err := repo.ActivityExists(context.Background(), "Mairie")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesEmbeddedFiles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`pg_advisory_lock`).WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_reference.sql"))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS erp`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_erp.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS geocode_cache`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("003_geocode_cache.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`pg_advisory_unlock`).WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
