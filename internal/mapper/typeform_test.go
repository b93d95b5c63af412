package mapper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp/erptest"
	"github.com/acceslibre/erpsync/internal/model"
)

func TestTypeform(t *testing.T) {
	row := csvRow(map[string]string{
		"#":       "tf-1",
		"nom":     "Saint-Rambert-en-Bugey",
		"cp":      "1230",
		"adresse": "12 Grande Rue",
		"geo":     "45.9486,5.4383",
		"email":   "mairie@example.org",
		"Votre mairie : {{hidden:nom}}  Y a-t-il une marche (ou plus) pour y rentrer ? (même toute petite)": "Oui, au moins une marche",
		"Combien de marches y a-t-il pour entrer dans votre mairie ?":                                        "3",
		"Avez-vous une rampe d'accès pour entrer dans votre mairie ?":                                        "Oui, j'ai une rampe amovible",
		"Est-ce qu’il y a des toilettes adaptées dans votre mairie ?":                                        "Non, ce sont des toilettes classiques",
		"Avez-vous un parking réservé à vos administrés?":                                                    "Oui, nous avons un parking reservé",
	})

	out, err := Typeform{}.Process(context.Background(), erptest.NewMemory(), row, Defaults{})
	require.NoError(t, err)

	c := out.(Candidate)
	rec := c.Record
	assert.Equal(t, "Mairie", rec.Nom)
	assert.Equal(t, "Mairie", rec.Activite)
	assert.Equal(t, model.SourceTypeform, rec.Source)
	assert.Equal(t, "Saint-Rambert-en-Bugey", rec.Commune)
	assert.Equal(t, "1230", rec.CodePostal)
	assert.Equal(t, "12", rec.Numero)
	assert.Equal(t, "Grande Rue", rec.Voie)
	assert.Equal(t, "mairie@example.org", rec.ImportEmail)
	assert.Equal(t, 45.9486, *rec.Latitude)
	assert.Equal(t, 5.4383, *rec.Longitude)
	assert.Equal(t, access.Answers{
		"entree_plain_pied":      false,
		"entree_marches":         3,
		"entree_marches_rampe":   "amovible",
		"sanitaires_presence":    true,
		"sanitaires_adaptes":     false,
		"stationnement_presence": true,
	}, rec.Accessibility)
	assert.NoError(t, rec.Accessibility.Check())
}

func TestTypeform_MissingID(t *testing.T) {
	_, err := Typeform{}.Process(context.Background(), erptest.NewMemory(), csvRow(map[string]string{"nom": "X"}), Defaults{})
	var missing *model.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "#", missing.Field)
}
