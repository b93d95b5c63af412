package mapper

import (
	"context"
	"fmt"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/model"
)

// nestennAnswers are the columns read from the Nestenn export; every other
// accessibility column is ignored.
var nestennAnswers = []string{
	"transport_station_presence",
	"stationnement_ext_presence",
	"entree_balise_sonore",
	"entree_aide_humaine",
	"entree_porte_presence",
}

// Generic maps CSV or XLSX files laid out like the acceslibre export:
// identity and address columns followed by one column per accessibility
// field. Nestenn restricts the answers to the Nestenn export columns and
// adds an import comment.
type Generic struct {
	Source  string
	Nestenn bool
}

func (g Generic) source(d Defaults) string {
	switch {
	case g.Source != "":
		return g.Source
	case d.Source != "":
		return d.Source
	default:
		return model.SourceAcceslibre
	}
}

// Process implements Mapper.
func (g Generic) Process(ctx context.Context, repo erp.Repository, row fetcher.RawRow, d Defaults) (Outcome, error) {
	source := g.source(d)
	id := row.String("id")
	if id == "" {
		return nil, &model.MissingFieldError{Field: "id"}
	}

	codePostal, ok := model.NormalizePostalCode(row.String("postal_code"))
	if !ok {
		return Skipped{Reason: fmt.Sprintf("ÉCARTÉ: Code invalide : %s", row.String("postal_code")), NoRecord: true}, nil
	}
	codeInsee := row.String("code_insee")
	if codeInsee != "" {
		if codeInsee, ok = padInsee(codeInsee); !ok {
			return Skipped{Reason: fmt.Sprintf("ÉCARTÉ: Code invalide : %s", row.String("code_insee")), NoRecord: true}, nil
		}
	}

	existing, done, err := existingBySource(ctx, repo, source, id)
	if err != nil || done != nil {
		return done, err
	}

	rec := model.Record{
		Nom:      row.String("name"),
		Activite: orDefault(row.String("activite"), d.Activite),
		Source:   source,
		SourceID: id,
		Siret:    row.String("siret"),
		Address: model.Address{
			Numero:     row.String("numero"),
			Voie:       row.String("voie"),
			LieuDit:    row.String("lieu_dit"),
			CodePostal: codePostal,
			CodeInsee:  codeInsee,
			Commune:    row.String("commune"),
		},
		ContactURL:   row.String("contact_url"),
		SiteInternet: row.String("site_internet"),
		Published:    true,
	}
	lat, _ := row.Get("latitude")
	lon, _ := row.Get("longitude")
	setCoordinates(&rec, lat, lon)

	answers, err := g.answers(row, d)
	if err != nil {
		return nil, err
	}
	rec.Accessibility = answers

	return Candidate{Record: rec, Existing: existing, Sources: link(source, id)}, nil
}

// answers types every accessibility column present in the row.
func (g Generic) answers(row fetcher.RawRow, d Defaults) (access.Answers, error) {
	names := access.Names()
	if g.Nestenn {
		names = nestennAnswers
	}

	answers := access.Answers{}
	verr := &model.ValidationError{}
	for _, name := range names {
		if _, ok := row.Get(name); !ok {
			continue
		}
		if err := answers.SetRaw(name, row.String(name)); err != nil {
			verr.Add(name, err.Error())
		}
	}
	if !verr.Empty() {
		return nil, verr
	}
	if g.Nestenn {
		answers["commentaire"] = "Ces informations ont été importées le " + d.today().Format("02/01/2006")
	}
	return answers, nil
}
