package mapper

import (
	"context"
	"strings"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/model"
)

// Accessibility codes of the Service Public feed.
const (
	accessAccessible   = "ACC"
	accessInaccessible = "NAC"
	accessOnDemand     = "DEM"
)

// ServicePublic maps the Service Public local services JSON feed.
type ServicePublic struct{}

// Process implements Mapper.
func (ServicePublic) Process(ctx context.Context, repo erp.Repository, row fetcher.RawRow, d Defaults) (Outcome, error) {
	for _, key := range []string{"ancien_code_pivot", "partenaire_identifiant", "nom", "adresse"} {
		if v, ok := row.Get(key); !ok || v == nil {
			return nil, &model.MissingFieldError{Field: key}
		}
	}
	pivot := row.String("ancien_code_pivot")
	partner := row.String("partenaire_identifiant")
	nom := row.String("nom")
	addr := first(row.Get("adresse"))
	if addr == nil {
		return nil, &model.MissingFieldError{Field: "adresse"}
	}

	serviceType := str(first(row.Get("pivot")), "type_service_local")
	activite, ok := servicePublicActivities[serviceType]
	if !ok {
		return Skipped{Reason: "ÉCARTÉ: type de service non géré : " + serviceType, NoRecord: true}, nil
	}

	existing, err := findServicePublic(ctx, repo, pivot, partner, nom, addr)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.PermanentlyClosed {
		return Skipped{Reason: "ÉCARTÉ: établissement définitivement fermé", NoRecord: true}, nil
	}

	numero, voie := SplitStreet(str(addr, "numero_voie"))
	rec := model.Record{
		Nom:      nom,
		Activite: activite,
		Source:   model.SourceServicePublic,
		SourceID: pivot,
		ASPID:    row.String("id"),
		Address: model.Address{
			Numero:     numero,
			Voie:       voie,
			CodePostal: str(addr, "code_postal"),
			CodeInsee:  row.String("code_insee_commune"),
			Commune:    str(addr, "nom_commune"),
		},
		Telephone:    strings.ReplaceAll(str(first(row.Get("telephone")), "valeur"), " ", ""),
		SiteInternet: str(first(row.Get("site_internet")), "valeur"),
		UserType:     model.UserTypeSystem,
		Metadata: map[string]any{
			"service_public": map[string]any{
				"ancien_code_pivot":      pivot,
				"partenaire_identifiant": partner,
				"type_service_local":     serviceType,
			},
		},
	}
	if emails, ok := row.Values["adresse_courriel"].([]any); ok && len(emails) > 0 {
		rec.ContactEmail = strings.TrimSpace(fetcher.Stringify(emails[0]))
	}
	setCoordinates(&rec, addr["latitude"], addr["longitude"])

	code := str(addr, "accessibilite")
	rec.Accessibility = servicePublicAnswers(code, str(addr, "note_accessibilite"))
	rec.Published = code != ""

	return Candidate{Record: rec, Existing: existing, Sources: link(model.SourceServicePublic, pivot)}, nil
}

// findServicePublic looks for a published establishment by legacy pivot
// code, then partner id, then name and address. Gendarmerie units are
// searched too since that import takes over units first listed here.
func findServicePublic(ctx context.Context, repo erp.Repository, pivot, partner, nom string, addr map[string]any) (*model.Establishment, error) {
	for _, id := range []string{pivot, partner} {
		for _, source := range []string{model.SourceServicePublic, model.SourceGendarmerie} {
			e, err := repo.BySource(ctx, source, id)
			if err != nil {
				return nil, &model.StorageError{Op: "lookup source", Err: err}
			}
			if e != nil && e.Published {
				return e, nil
			}
		}
	}

	filters := []erp.Filter{
		{MetadataPath: []string{"service_public", "ancien_code_pivot"}, MetadataValue: pivot},
		{Noms: []string{nom}, CodePostal: str(addr, "code_postal"), Commune: str(addr, "nom_commune")},
	}
	for _, f := range filters {
		f.Published = erp.Published(true)
		f.Limit = 1
		found, err := repo.Find(ctx, f)
		if err != nil {
			return nil, &model.StorageError{Op: "lookup", Err: err}
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, nil
}

func servicePublicAnswers(code, note string) access.Answers {
	a := access.Answers{}
	switch code {
	case accessAccessible:
		switch {
		case strings.Contains(note, "plain-pied"):
			a["entree_plain_pied"] = true
		case strings.Contains(note, "rampe"):
			a["entree_plain_pied"] = false
			a["entree_marches_rampe"] = "fixe"
		default:
			a["commentaire"] = "Établissement accessible en fauteuil roulant"
		}
	case accessInaccessible:
		a["entree_plain_pied"] = false
	case accessOnDemand:
		a["entree_plain_pied"] = false
		a["entree_marches_rampe"] = "amovible"
		a["entree_aide_humaine"] = true
	}
	return a
}
