package mapper

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/model"
)

var typeformAddressRe = regexp.MustCompile(`^([0-9]*) ?(.*)$`)

// typeformAnswer maps one answer label of a question to accessibility values.
type typeformAnswer struct {
	label  string
	values access.Answers
}

// typeformQuestions maps the town hall questionnaire to accessibility fields.
// Questions match trimmed column names and labels match verbatim.
var typeformQuestions = []struct {
	question string
	answers  []typeformAnswer
}{
	{"Votre mairie : {{hidden:nom}}  Y a-t-il une marche (ou plus) pour y rentrer ? (même toute petite) ", []typeformAnswer{
		{"Non, c'est de plain-pied", access.Answers{"entree_plain_pied": true}},
		{"Oui, au moins une marche", access.Answers{"entree_plain_pied": false}},
	}},
	{"Est-ce qu'il faut, pour entrer dans la mairie, monter les marches ou les descendre ?", []typeformAnswer{
		{"Je dois monter le(s) marche(s)", access.Answers{"entree_marches_sens": "montant"}},
		{"je dois descendre le(s) marche(s)", access.Answers{"entree_marches_sens": "descendant"}},
	}},
	{"Avez-vous une rampe d'accès pour entrer dans votre mairie ?", []typeformAnswer{
		{"Oui, j'ai une rampe fixe", access.Answers{"entree_marches_rampe": "fixe"}},
		{"Oui, j'ai une rampe amovible", access.Answers{"entree_marches_rampe": "amovible"}},
		{"Non, pas de rampe", access.Answers{"entree_marches_rampe": "aucune"}},
	}},
	{"Vous avez une rampe amovible : avez-vous aussi une sonnette pour appeler à l'intérieur ?", []typeformAnswer{
		{"True", access.Answers{"entree_dispositif_appel": true}},
		{"False", access.Answers{"entree_dispositif_appel": false}},
	}},
	{"Est-ce qu’il y a des toilettes adaptées dans votre mairie ?", []typeformAnswer{
		{"Oui, j'ai des toilettes adaptées", access.Answers{"sanitaires_presence": true, "sanitaires_adaptes": true}},
		{"Non, ce sont des toilettes classiques", access.Answers{"sanitaires_presence": true, "sanitaires_adaptes": false}},
		{"Je n'ai pas de toilettes", access.Answers{"sanitaires_presence": false}},
	}},
	{"Avez-vous un parking réservé à vos administrés? ", []typeformAnswer{
		{"Oui, nous avons un parking reservé", access.Answers{"stationnement_presence": true}},
		{"Non, nous n'avons pas de parking reservé", access.Answers{"stationnement_presence": false}},
	}},
	{"Est-ce qu’il y au moins une place handicapé dans votre parking ?", []typeformAnswer{
		{"Oui c'est praticable", access.Answers{
			"cheminement_ext_presence":       true,
			"cheminement_ext_terrain_stable": true,
			"cheminement_ext_plain_pied":     true,
			"cheminement_ext_retrecissement": false,
		}},
		{"Non, ce n'est pas praticable", access.Answers{"cheminement_ext_presence": true}},
	}},
	{"Ce chemin n'est pas praticable car : ", []typeformAnswer{
		{"problème de pente", access.Answers{
			"cheminement_ext_pente_presence":         true,
			"cheminement_ext_pente_degre_difficulte": "importante",
			"cheminement_ext_pente_longueur":         "longue",
		}},
		{"problème de marche", access.Answers{
			"cheminement_ext_plain_pied": false,
			"cheminement_ext_ascenseur":  false,
			"cheminement_ext_rampe":      "aucune",
		}},
	}},
	{"Est-ce qu’il y au moins une place handicapé dans les environs ?", []typeformAnswer{
		{"Oui, il y a une place  de parking handicapé pas loin", access.Answers{"stationnement_ext_presence": true, "stationnement_ext_pmr": true}},
		{"Non, pas de place handicapé pas loin", access.Answers{"stationnement_ext_presence": true, "stationnement_ext_pmr": false}},
	}},
}

const typeformStepsQuestion = "Combien de marches y a-t-il pour entrer dans votre mairie ?"

// Typeform maps the CSV export of the town hall accessibility questionnaire.
type Typeform struct{}

// Process implements Mapper.
func (Typeform) Process(ctx context.Context, repo erp.Repository, row fetcher.RawRow, d Defaults) (Outcome, error) {
	id := row.String("#")
	if id == "" {
		return nil, &model.MissingFieldError{Field: "#"}
	}
	existing, done, err := existingBySource(ctx, repo, model.SourceTypeform, id)
	if err != nil || done != nil {
		return done, err
	}

	rec := model.Record{
		Nom:         "Mairie",
		Activite:    orDefault(d.Activite, "Mairie"),
		Source:      model.SourceTypeform,
		SourceID:    id,
		ImportEmail: row.String("email"),
		Published:   true,
	}
	rec.CodePostal = row.String("cp")
	rec.Commune = orDefault(row.String("Ville"), row.String("nom"))
	if m := typeformAddressRe.FindStringSubmatch(row.String("adresse")); m != nil {
		rec.Numero, rec.Voie = m[1], strings.TrimSpace(m[2])
	}
	if lat, lon, ok := strings.Cut(row.String("geo"), ","); ok {
		setCoordinates(&rec, lat, lon)
	}
	rec.Accessibility = typeformAnswers(row)

	return Candidate{Record: rec, Existing: existing, Sources: link(model.SourceTypeform, id)}, nil
}

func typeformAnswers(row fetcher.RawRow) access.Answers {
	out := access.Answers{}
	for _, q := range typeformQuestions {
		got := row.String(strings.TrimSpace(q.question))
		for _, a := range q.answers {
			if got != strings.TrimSpace(a.label) {
				continue
			}
			for k, v := range a.values {
				out[k] = v
			}
			break
		}
	}
	if n, err := strconv.Atoi(row.String(typeformStepsQuestion)); err == nil && n >= 0 {
		out["entree_marches"] = n
	}
	return out
}
