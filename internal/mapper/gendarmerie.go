package mapper

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/model"
)

// Gendarmerie dataset constants.
const (
	GendarmerieURL        = "https://www.data.gouv.fr/fr/datasets/liste-des-unites-de-gendarmerie-accueillant-du-public-comprenant-leur-geolocalisation-et-leurs-horaires-douverture/"
	GendarmerieContactURL = "https://www.gendarmerie.interieur.gouv.fr/a-votre-contact/contacter-la-gendarmerie/magendarmerie.fr"
)

// Gendarmerie maps the CSV of gendarmerie units open to the public.
type Gendarmerie struct{}

// Process implements Mapper.
func (Gendarmerie) Process(ctx context.Context, repo erp.Repository, row fetcher.RawRow, d Defaults) (Outcome, error) {
	id := row.String("identifiant_public_unite")
	if id == "" {
		return nil, &model.MissingFieldError{Field: "identifiant_public_unite"}
	}
	for _, col := range []string{"service", "voie", "code_postal"} {
		if _, ok := row.Get(col); !ok {
			return nil, &model.MissingFieldError{Field: col}
		}
	}

	numero, voie := SplitStreet(row.String("voie"))
	rec := model.Record{
		Nom:      row.String("service"),
		Activite: orDefault(d.Activite, "Gendarmerie"),
		Source:   model.SourceGendarmerie,
		SourceID: id,
		Address: model.Address{
			Numero:     numero,
			Voie:       voie,
			CodePostal: row.String("code_postal"),
			CodeInsee:  row.String("code_commune_insee"),
			Commune:    row.String("commune"),
		},
		Telephone:    row.String("telephone"),
		SiteInternet: strings.ReplaceAll(row.String("url"), `"`, ""),
		ContactURL:   GendarmerieContactURL,
		Published:    true,
	}
	lon, _ := row.Get("geocodage_x_GPS")
	lat, _ := row.Get("geocodage_y_GPS")
	if !setCoordinates(&rec, lat, lon) {
		return nil, model.NewValidationError("geom", "Coordonnées géographiques manquantes ou invalides")
	}

	existing, err := takeOver(ctx, repo, &rec, d)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		var done Outcome
		existing, done, err = existingBySource(ctx, repo, model.SourceGendarmerie, id)
		if err != nil || done != nil {
			return done, err
		}
	}

	// Stored answers are kept, only the comment is refreshed.
	rec.Accessibility = access.Answers{"commentaire": gendarmerieComment(row, d)}
	if existing == nil || !existing.HasAccessibility {
		rec.Accessibility["entree_porte_presence"] = true
	}
	return Candidate{Record: rec, Existing: existing, Sources: link(model.SourceGendarmerie, id)}, nil
}

// takeOver finds an establishment of another source with the same activity
// near the unit. When one exists, the unit's previous published import is
// unpublished and the found establishment carries the unit from now on.
func takeOver(ctx context.Context, repo erp.Repository, rec *model.Record, d Defaults) (*model.Establishment, error) {
	point := model.Point{Lat: *rec.Latitude, Lon: *rec.Longitude}
	found, err := repo.Find(ctx, erp.Filter{
		Activite:      rec.Activite,
		ExcludeSource: model.SourceGendarmerie,
		Near:          &point,
		Radius:        d.takeoverRadius(),
		Limit:         1,
	})
	if err != nil {
		return nil, &model.StorageError{Op: "lookup nearby", Err: err}
	}
	if len(found) == 0 {
		return nil, nil
	}
	target := found[0]

	old, err := repo.BySource(ctx, model.SourceGendarmerie, rec.SourceID)
	if err != nil {
		return nil, &model.StorageError{Op: "lookup source", Err: err}
	}
	if old != nil && old.Published && old.ID != target.ID {
		if err := repo.SetPublished(ctx, old.ID, false); err != nil {
			return nil, &model.StorageError{Op: "unpublish", Err: err}
		}
		zap.L().Info("unpublished obsolete duplicate",
			zap.String("component", "mapper"),
			zap.Int64("erp_id", old.ID),
			zap.String("nom", old.Nom),
		)
	}
	return &target, nil
}

func gendarmerieComment(row fetcher.RawRow, d Defaults) string {
	c := ImportComment(false, d.today(), GendarmerieURL)
	if hours := SplitHours(row.String("horaires_accueil")); len(hours) > 0 {
		c += "\n\nHoraires d'accueil: \n" + strings.Join(hours, "\n")
	}
	return c
}
