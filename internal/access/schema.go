// Package access defines the accessibility answer schema: the typed field
// registry, value parsing, parent/child consistency rules and completion rate.
package access

// Kind is the value type of an accessibility field.
type Kind int

// Field kinds.
const (
	Bool Kind = iota + 1
	Int
	Enum
	List
	Text
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "boolean"
	case Int:
		return "integer"
	case Enum:
		return "enum"
	case List:
		return "list"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Sections group fields the way the questionnaire does.
const (
	SectionTransport      = "transport"
	SectionStationnement  = "stationnement"
	SectionCheminementExt = "cheminement_ext"
	SectionEntree         = "entree"
	SectionAccueil        = "accueil"
	SectionSanitaires     = "sanitaires"
	SectionLabels         = "labels"
	SectionCommentaire    = "commentaire"
	SectionConformite     = "conformite"
)

// Field describes one accessibility answer.
type Field struct {
	Name    string
	Section string
	Kind    Kind
	Choices []string // allowed values for Enum and List
	Root    bool     // not the sub-answer of any consistency rule
}

var (
	sensMarches    = []string{"montant", "descendant"}
	rampeChoices   = []string{"aucune", "fixe", "amovible"}
	penteChoices   = []string{"aucune", "légère", "importante"}
	longueurChoice = []string{"courte", "moyenne", "longue"}
	deversChoices  = []string{"aucun", "léger", "important"}
)

// Fields lists every accessibility field in questionnaire order.
var Fields = []Field{
	{Name: "transport_station_presence", Section: SectionTransport, Kind: Bool},
	{Name: "transport_information", Section: SectionTransport, Kind: Text},

	{Name: "stationnement_presence", Section: SectionStationnement, Kind: Bool},
	{Name: "stationnement_pmr", Section: SectionStationnement, Kind: Bool},
	{Name: "stationnement_ext_presence", Section: SectionStationnement, Kind: Bool},
	{Name: "stationnement_ext_pmr", Section: SectionStationnement, Kind: Bool},

	{Name: "cheminement_ext_presence", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_terrain_stable", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_plain_pied", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_ascenseur", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_nombre_marches", Section: SectionCheminementExt, Kind: Int},
	{Name: "cheminement_ext_reperage_marches", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_sens_marches", Section: SectionCheminementExt, Kind: Enum, Choices: sensMarches},
	{Name: "cheminement_ext_main_courante", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_rampe", Section: SectionCheminementExt, Kind: Enum, Choices: rampeChoices},
	{Name: "cheminement_ext_pente_presence", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_pente_degre_difficulte", Section: SectionCheminementExt, Kind: Enum, Choices: penteChoices},
	{Name: "cheminement_ext_pente_longueur", Section: SectionCheminementExt, Kind: Enum, Choices: longueurChoice},
	{Name: "cheminement_ext_devers", Section: SectionCheminementExt, Kind: Enum, Choices: deversChoices},
	{Name: "cheminement_ext_bande_guidage", Section: SectionCheminementExt, Kind: Bool},
	{Name: "cheminement_ext_retrecissement", Section: SectionCheminementExt, Kind: Bool},

	{Name: "entree_reperage", Section: SectionEntree, Kind: Bool},
	{Name: "entree_porte_presence", Section: SectionEntree, Kind: Bool},
	{Name: "entree_porte_manoeuvre", Section: SectionEntree, Kind: Enum, Choices: []string{"battante", "coulissante", "tourniquet", "tambour"}},
	{Name: "entree_porte_type", Section: SectionEntree, Kind: Enum, Choices: []string{"manuelle", "automatique"}},
	{Name: "entree_vitree", Section: SectionEntree, Kind: Bool},
	{Name: "entree_vitree_vitrophanie", Section: SectionEntree, Kind: Bool},
	{Name: "entree_plain_pied", Section: SectionEntree, Kind: Bool},
	{Name: "entree_ascenseur", Section: SectionEntree, Kind: Bool},
	{Name: "entree_marches", Section: SectionEntree, Kind: Int},
	{Name: "entree_marches_reperage", Section: SectionEntree, Kind: Bool},
	{Name: "entree_marches_main_courante", Section: SectionEntree, Kind: Bool},
	{Name: "entree_marches_rampe", Section: SectionEntree, Kind: Enum, Choices: rampeChoices},
	{Name: "entree_marches_sens", Section: SectionEntree, Kind: Enum, Choices: sensMarches},
	{Name: "entree_dispositif_appel", Section: SectionEntree, Kind: Bool},
	{Name: "entree_dispositif_appel_type", Section: SectionEntree, Kind: List, Choices: []string{"bouton", "interphone", "visiophone"}},
	{Name: "entree_balise_sonore", Section: SectionEntree, Kind: Bool},
	{Name: "entree_aide_humaine", Section: SectionEntree, Kind: Bool},
	{Name: "entree_largeur_mini", Section: SectionEntree, Kind: Int},
	{Name: "entree_pmr", Section: SectionEntree, Kind: Bool},
	{Name: "entree_pmr_informations", Section: SectionEntree, Kind: Text},

	{Name: "accueil_visibilite", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_personnels", Section: SectionAccueil, Kind: Enum, Choices: []string{"aucun", "formés", "non-formés"}},
	{Name: "accueil_audiodescription_presence", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_audiodescription", Section: SectionAccueil, Kind: List, Choices: []string{"avec_équipement_permanent", "avec_app", "avec_équipement_occasionnel", "sans_équipement"}},
	{Name: "accueil_equipements_malentendants_presence", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_equipements_malentendants", Section: SectionAccueil, Kind: List, Choices: []string{"autres", "bim", "lsf", "scd", "lpc"}},
	{Name: "accueil_cheminement_plain_pied", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_cheminement_ascenseur", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_cheminement_nombre_marches", Section: SectionAccueil, Kind: Int},
	{Name: "accueil_cheminement_reperage_marches", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_cheminement_main_courante", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_cheminement_rampe", Section: SectionAccueil, Kind: Enum, Choices: []string{"aucune", "fixe", "amovible", "aide humaine"}},
	{Name: "accueil_cheminement_sens_marches", Section: SectionAccueil, Kind: Enum, Choices: sensMarches},
	{Name: "accueil_retrecissement", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_nombre_accessibles", Section: SectionAccueil, Kind: Int},
	{Name: "accueil_chambre_douche_plain_pied", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_douche_siege", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_douche_barre_appui", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_sanitaires_barre_appui", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_sanitaires_espace_usage", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_numero_visible", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_equipement_alerte", Section: SectionAccueil, Kind: Bool},
	{Name: "accueil_chambre_accompagnement", Section: SectionAccueil, Kind: Bool},

	{Name: "sanitaires_presence", Section: SectionSanitaires, Kind: Bool},
	{Name: "sanitaires_adaptes", Section: SectionSanitaires, Kind: Bool},

	{Name: "labels", Section: SectionLabels, Kind: List, Choices: []string{"autre", "dpt", "mobalib", "th", "handiplage"}},
	{Name: "labels_familles_handicap", Section: SectionLabels, Kind: List, Choices: []string{"auditif", "mental", "moteur", "visuel"}},
	{Name: "labels_autre", Section: SectionLabels, Kind: Text},

	{Name: "commentaire", Section: SectionCommentaire, Kind: Text},

	{Name: "registre_url", Section: SectionConformite, Kind: Text},
	{Name: "conformite", Section: SectionConformite, Kind: Bool},
}

var byName map[string]int

func init() {
	children := make(map[string]bool)
	for _, r := range Rules {
		for _, c := range r.Children {
			children[c] = true
		}
	}

	byName = make(map[string]int, len(Fields))
	for i := range Fields {
		Fields[i].Root = !children[Fields[i].Name]
		byName[Fields[i].Name] = i
	}
}

// Lookup returns the field registered under name.
func Lookup(name string) (Field, bool) {
	i, ok := byName[name]
	if !ok {
		return Field{}, false
	}
	return Fields[i], true
}

// Names returns every field name in questionnaire order.
func Names() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// RootNames returns the fields counted by the completion rate.
func RootNames() []string {
	var names []string
	for _, f := range Fields {
		if f.Root {
			names = append(names, f.Name)
		}
	}
	return names
}

func (f Field) allows(choice string) bool {
	for _, c := range f.Choices {
		if c == choice {
			return true
		}
	}
	return false
}
