package mapper

import (
	"context"
	"strings"
	"time"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/textnorm"
)

// VaccinationURL is the data.gouv.fr page of the vaccination sites dataset.
const VaccinationURL = "https://www.data.gouv.fr/fr/datasets/lieux-de-vaccination-contre-la-covid-19/"

// Exclusion reasons.
const (
	ReasonPending       = "En attente d'affectation"
	ReasonMobileTeam    = "Équipe mobile écartée"
	ReasonRestricted    = "Réservé à un public restreint"
	ReasonProfessionals = "Réservé aux professionnels de santé"
	ReasonPrison        = "Centre réservé à la population carcérale"
)

// exclusions is matched in order against the site name and the appointment
// notes, ignoring case and accents.
var exclusions = []struct {
	phrase, reason string
}{
	{"Réservé aux professionnels de santé", ReasonProfessionals},
	{"Uniquement pour les professionnels de santé", ReasonProfessionals},
	{"Ouvert uniquement aux professionnels", ReasonProfessionals},
	{"Professionnels de santé uniquement", ReasonProfessionals},
	{"Réservé PS", ReasonProfessionals},
	{"réservé aux professionnels", ReasonProfessionals},
	{"centre pour professionnels de santé", ReasonProfessionals},
	{"Équipe mobile", ReasonMobileTeam},
	{"vaccination mobile", ReasonMobileTeam},
	{"EMV", ReasonMobileTeam},
	{"en attente", ReasonPending},
	{"centre de détention", ReasonPrison},
	{"pénitentiaire", ReasonPrison},
	{"prison", ReasonPrison},
	{"UHSA", ReasonPrison},
	{"UHSI", ReasonPrison},
	{"USMP", ReasonPrison},
}

var vaccinationFields = []struct {
	column string
	set    func(*model.Record, string)
}{
	{"c_nom", func(r *model.Record, v string) { r.Nom = v }},
	{"c_adr_num", func(r *model.Record, v string) { r.Numero = v }},
	{"c_adr_voie", func(r *model.Record, v string) { r.Voie = v }},
	{"c_com_nom", func(r *model.Record, v string) { r.Commune = v }},
	{"c_com_cp", func(r *model.Record, v string) { r.CodePostal = v }},
	{"c_com_insee", func(r *model.Record, v string) { r.CodeInsee = v }},
	{"c_rdv_tel", func(r *model.Record, v string) { r.Telephone = v }},
}

var weekdays = []string{"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche"}

// Vaccination maps the GeoJSON features of the vaccination sites dataset.
type Vaccination struct{}

// Process implements Mapper.
func (Vaccination) Process(ctx context.Context, repo erp.Repository, row fetcher.RawRow, d Defaults) (Outcome, error) {
	if _, ok := row.Get("properties"); !ok {
		return nil, &model.MissingFieldError{Field: "properties"}
	}
	if _, ok := row.Get("geometry"); !ok {
		return nil, &model.MissingFieldError{Field: "geometry"}
	}
	prop := func(name string) string { return row.String("properties." + name) }

	gid := prop("c_gid")
	if gid == "" {
		return nil, &model.MissingFieldError{Field: "c_gid"}
	}

	today := d.today()
	if reason := vaccinationExclusion(row, today); reason != "" {
		return closeOut(ctx, repo, model.SourceVaccination, gid, reason)
	}

	existing, err := repo.BySource(ctx, model.SourceVaccination, gid)
	if err != nil {
		return nil, &model.StorageError{Op: "lookup source", Err: err}
	}

	rec := model.Record{
		Activite:  orDefault(d.Activite, "Centre de vaccination"),
		Source:    model.SourceVaccination,
		SourceID:  gid,
		Published: true,
	}
	for _, f := range vaccinationFields {
		f.set(&rec, prop(f.column))
	}
	if len(rec.Telephone) > 20 {
		rec.Telephone = ""
	}
	if !vaccinationCoordinates(row, &rec) {
		return nil, model.NewValidationError("geom", "Coordonnées géographiques manquantes ou invalides")
	}
	rec.Metadata = vaccinationMetadata(prop)
	rec.Accessibility = access.Answers{
		"commentaire": ImportComment(existing != nil, today, VaccinationURL),
	}

	return Candidate{Record: rec, Existing: existing, Sources: link(model.SourceVaccination, gid)}, nil
}

func vaccinationExclusion(row fetcher.RawRow, today time.Time) string {
	if raw := row.String("properties.c_date_fermeture"); raw != "" {
		if closed, err := time.Parse("2006-01-02", raw); err == nil && closed.Before(today) {
			return "Centre fermé le " + closed.Format("2006-01-02")
		}
	}

	nom := row.String("properties.c_nom")
	notes := row.String("properties.c_rdv_modalites")
	for _, e := range exclusions {
		if textnorm.ContainsFold(nom, e.phrase) || textnorm.ContainsFold(notes, e.phrase) {
			return e.reason
		}
	}

	if v, _ := row.Get("properties.c_reserve_professionels_sante"); v == true {
		return ReasonProfessionals
	}
	if v, _ := row.Get("properties.c_centre_fermeture"); v == true {
		return ReasonRestricted
	}
	return ""
}

// vaccinationCoordinates reads a Point or the first position of a
// MultiPoint, both [lon, lat].
func vaccinationCoordinates(row fetcher.RawRow, rec *model.Record) bool {
	coords, _ := row.Get("geometry.coordinates")
	pos, ok := coords.([]any)
	if !ok || len(pos) == 0 {
		return false
	}
	if inner, ok := pos[0].([]any); ok {
		pos = inner
	}
	if len(pos) < 2 {
		return false
	}
	return setCoordinates(rec, pos[1], pos[0])
}

func vaccinationMetadata(prop func(string) string) map[string]any {
	nullable := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}
	hours := make(map[string]any, len(weekdays))
	for _, day := range weekdays {
		hours[day] = orDefault(prop("c_rdv_"+day), "N/C")
	}
	var rdvURL any
	if u := prop("c_rdv_site_web"); strings.HasPrefix(u, "http") {
		rdvURL = u
	}
	return map[string]any{
		"ban_addresse_id": nullable(prop("c_id_adr")),
		"centre_vaccination": map[string]any{
			"datemaj": nullable(prop("c__edit_datemaj")),
			"structure": map[string]any{
				"nom":         nullable(prop("c_structure_rais")),
				"numero":      nullable(prop("c_structure_num")),
				"voie":        nullable(prop("c_structure_voie")),
				"code_postal": nullable(prop("c_structure_cp")),
				"code_insee":  nullable(prop("c_structure_insee")),
				"commune":     nullable(prop("c_structure_com")),
			},
			"date_fermeture": nullable(prop("c_date_fermeture")),
			"date_ouverture": nullable(prop("c_date_ouverture")),
			"acces_sur_rdv":  nullable(prop("c_rdv")),
			"url_rdv":        rdvURL,
			"modalites":      nullable(prop("c_rdv_modalites")),
			"prevaccination": nullable(prop("c_rdv_consultation_prevaccination")),
			"horaires_rdv":   hours,
		},
	}
}
