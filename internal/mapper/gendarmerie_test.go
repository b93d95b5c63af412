package mapper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp/erptest"
	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/validate"
)

func gendarmerieRow() map[string]string {
	return map[string]string{
		"identifiant_public_unite": "1008620",
		"service":                  "Brigade de proximité de Lunel",
		"telephone":                "04 67 71 00 00",
		"code_commune_insee":       "34145",
		"code_postal":              "34400",
		"commune":                  "Lunel",
		"voie":                     "12 bis avenue Victor Hugo",
		"geocodage_x_GPS":          "4.1357",
		"geocodage_y_GPS":          "43.6750",
		"url":                      `"https://www.gendarmerie.interieur.gouv.fr"`,
		"horaires_accueil":         "Lundi : 8h-12hMardi : 14h-18h",
	}
}

func TestGendarmerie_NewUnit(t *testing.T) {
	repo := erptest.NewMemory("Gendarmerie")
	out, err := Gendarmerie{}.Process(context.Background(), repo, csvRow(gendarmerieRow()), Defaults{Today: today})
	require.NoError(t, err)

	c, ok := out.(Candidate)
	require.True(t, ok)
	assert.Nil(t, c.Existing)
	rec := c.Record
	assert.Equal(t, "12 bis", rec.Numero)
	assert.Equal(t, "avenue Victor Hugo", rec.Voie)
	assert.Equal(t, "https://www.gendarmerie.interieur.gouv.fr", rec.SiteInternet)
	assert.Equal(t, GendarmerieContactURL, rec.ContactURL)
	assert.Equal(t, 43.675, *rec.Latitude)
	assert.Equal(t, 4.1357, *rec.Longitude)
	assert.Equal(t, true, rec.Accessibility.Get("entree_porte_presence"))
	assert.Equal(t,
		"Ces informations ont été importées depuis data.gouv.fr le 15/06/2021 "+GendarmerieURL+
			"\n\nHoraires d'accueil: \nLundi : 8h-12h\nMardi : 14h-18h",
		rec.Accessibility.Get("commentaire"))
}

func TestGendarmerie_TakesOverNearbyEstablishment(t *testing.T) {
	repo := erptest.NewMemory("Gendarmerie")
	near := repo.Seed(model.Establishment{Record: model.Record{
		Nom: "Gendarmerie de Lunel", Activite: "Gendarmerie", Source: model.SourceServicePublic,
		Published: true, Geom: &model.Point{Lat: 43.6760, Lon: 4.1360},
	}})
	repo.Seed(model.Establishment{Record: model.Record{
		Nom: "Gendarmerie de Nîmes", Activite: "Gendarmerie", Source: model.SourceServicePublic,
		Published: true, Geom: &model.Point{Lat: 43.8367, Lon: 4.3601},
	}})
	previous := repo.Seed(model.Establishment{Record: model.Record{
		Nom: "Brigade", Activite: "Gendarmerie", Source: model.SourceGendarmerie, SourceID: "1008620",
		Published: true, Geom: &model.Point{Lat: 43.6750, Lon: 4.1357},
	}})

	out, err := Gendarmerie{}.Process(context.Background(), repo, csvRow(gendarmerieRow()), Defaults{Today: today})
	require.NoError(t, err)

	c := out.(Candidate)
	require.NotNil(t, c.Existing)
	assert.Equal(t, near, c.Existing.ID)
	assert.Equal(t, []model.SourceLink{{Source: model.SourceGendarmerie, SourceID: "1008620"}}, c.Sources)

	old, err := repo.Get(context.Background(), previous)
	require.NoError(t, err)
	assert.False(t, old.Published)
}

func TestGendarmerie_ReimportKeepsStoredAnswers(t *testing.T) {
	repo := erptest.NewMemory("Gendarmerie")
	id := repo.Seed(model.Establishment{Record: model.Record{
		Nom: "Brigade de Lunel", Activite: "Gendarmerie", Source: model.SourceGendarmerie, SourceID: "1008620",
		Published: true, UserType: model.UserTypePublic,
		Accessibility: access.Answers{"entree_porte_presence": false, "entree_plain_pied": true},
	}})

	out, err := Gendarmerie{}.Process(context.Background(), repo, csvRow(gendarmerieRow()), Defaults{Today: today})
	require.NoError(t, err)
	c := out.(Candidate)
	require.NotNil(t, c.Existing)
	assert.Equal(t, id, c.Existing.ID)
	assert.Nil(t, c.Record.Accessibility.Get("entree_porte_presence"))
	assert.NotEmpty(t, c.Record.Accessibility.Get("commentaire"))

	rec, err := validate.New(nil, nil).Validate(context.Background(), repo, validate.Input{Record: c.Record, Existing: c.Existing})
	require.NoError(t, err)
	assert.Equal(t, false, rec.Accessibility.Get("entree_porte_presence"))
	assert.Equal(t, true, rec.Accessibility.Get("entree_plain_pied"))
	assert.Equal(t, c.Record.Accessibility.Get("commentaire"), rec.Accessibility.Get("commentaire"))
}

func TestGendarmerie_ClosedUnitIsSkipped(t *testing.T) {
	repo := erptest.NewMemory("Gendarmerie")
	repo.Seed(model.Establishment{Record: model.Record{
		Nom: "Brigade", Source: model.SourceGendarmerie, SourceID: "1008620", PermanentlyClosed: true,
	}})

	out, err := Gendarmerie{}.Process(context.Background(), repo, csvRow(gendarmerieRow()), Defaults{})
	require.NoError(t, err)
	skipped, ok := out.(Skipped)
	require.True(t, ok)
	assert.True(t, skipped.NoRecord)
}

func TestGendarmerie_Errors(t *testing.T) {
	row := gendarmerieRow()
	delete(row, "identifiant_public_unite")
	_, err := Gendarmerie{}.Process(context.Background(), erptest.NewMemory(), csvRow(row), Defaults{})
	var missing *model.MissingFieldError
	require.ErrorAs(t, err, &missing)

	row = gendarmerieRow()
	row["geocodage_x_GPS"] = "n/a"
	_, err = Gendarmerie{}.Process(context.Background(), erptest.NewMemory(), csvRow(row), Defaults{})
	var invalid *model.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Fields, "geom")
}
