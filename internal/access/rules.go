package access

import (
	"fmt"
	"strings"
)

// Rule ties sub-answers to a parent answer: every child must stay empty
// unless Enables reports true for the parent value.
type Rule struct {
	Parent   string
	Enables  func(v any) bool
	Children []string
	// ZeroOK lets integer children hold 0 while disabled.
	ZeroOK bool
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func isFalse(v any) bool {
	b, ok := v.(bool)
	return ok && !b
}

func nonEmpty(v any) bool { return !IsEmpty(v) }

func positive(v any) bool {
	n, ok := v.(int)
	return ok && n > 0
}

// Rules lists the parent/child consistency constraints.
var Rules = []Rule{
	{Parent: "transport_station_presence", Enables: isTrue, Children: []string{"transport_information"}},
	{Parent: "stationnement_presence", Enables: isTrue, Children: []string{"stationnement_pmr"}},
	{Parent: "stationnement_ext_presence", Enables: isTrue, Children: []string{"stationnement_ext_pmr"}},
	{Parent: "cheminement_ext_presence", Enables: isTrue, Children: []string{
		"cheminement_ext_terrain_stable",
		"cheminement_ext_plain_pied",
		"cheminement_ext_pente_presence",
		"cheminement_ext_devers",
		"cheminement_ext_bande_guidage",
		"cheminement_ext_retrecissement",
	}},
	{Parent: "cheminement_ext_plain_pied", Enables: isFalse, Children: []string{
		"cheminement_ext_ascenseur",
		"cheminement_ext_nombre_marches",
		"cheminement_ext_sens_marches",
		"cheminement_ext_reperage_marches",
		"cheminement_ext_main_courante",
		"cheminement_ext_rampe",
	}},
	{Parent: "cheminement_ext_pente_presence", Enables: isTrue, Children: []string{
		"cheminement_ext_pente_degre_difficulte",
		"cheminement_ext_pente_longueur",
	}},
	{Parent: "entree_porte_presence", Enables: isTrue, Children: []string{
		"entree_porte_manoeuvre",
		"entree_porte_type",
		"entree_vitree",
	}},
	{Parent: "entree_vitree", Enables: isTrue, Children: []string{"entree_vitree_vitrophanie"}},
	{Parent: "entree_plain_pied", Enables: isFalse, ZeroOK: true, Children: []string{
		"entree_ascenseur",
		"entree_marches",
		"entree_marches_sens",
		"entree_marches_reperage",
		"entree_marches_main_courante",
		"entree_marches_rampe",
	}},
	{Parent: "entree_dispositif_appel", Enables: isTrue, Children: []string{"entree_dispositif_appel_type"}},
	{Parent: "entree_pmr", Enables: isTrue, Children: []string{"entree_pmr_informations"}},
	{Parent: "accueil_cheminement_plain_pied", Enables: isFalse, Children: []string{
		"accueil_cheminement_ascenseur",
		"accueil_cheminement_nombre_marches",
		"accueil_cheminement_reperage_marches",
		"accueil_cheminement_main_courante",
		"accueil_cheminement_rampe",
		"accueil_cheminement_sens_marches",
	}},
	{Parent: "accueil_audiodescription_presence", Enables: isTrue, Children: []string{"accueil_audiodescription"}},
	{Parent: "accueil_equipements_malentendants_presence", Enables: isTrue, Children: []string{"accueil_equipements_malentendants"}},
	{Parent: "sanitaires_presence", Enables: isTrue, Children: []string{"sanitaires_adaptes"}},
	{Parent: "labels", Enables: nonEmpty, Children: []string{"labels_familles_handicap", "labels_autre"}},
	{Parent: "accueil_chambre_nombre_accessibles", Enables: positive, Children: []string{
		"accueil_chambre_douche_plain_pied",
		"accueil_chambre_douche_siege",
		"accueil_chambre_douche_barre_appui",
		"accueil_chambre_sanitaires_barre_appui",
		"accueil_chambre_sanitaires_espace_usage",
		"accueil_chambre_numero_visible",
		"accueil_chambre_equipement_alerte",
		"accueil_chambre_accompagnement",
	}},
}

// Violation is a child answered while its parent does not enable it.
type Violation struct {
	Parent string
	Child  string
}

// ConsistencyError lists every violated rule.
type ConsistencyError struct {
	Violations []Violation
}

func (e *ConsistencyError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s requires %s", v.Child, v.Parent)
	}
	return "access: inconsistent answers: " + strings.Join(parts, "; ")
}

// Check returns a *ConsistencyError when a sub-answer is set without its
// parent enabling it.
func (a Answers) Check() error {
	var violations []Violation
	for _, r := range Rules {
		if r.Enables(a.Get(r.Parent)) {
			continue
		}
		for _, child := range r.Children {
			v := a.Get(child)
			if IsEmpty(v) {
				continue
			}
			if n, ok := v.(int); ok && n == 0 && r.ZeroOK {
				continue
			}
			violations = append(violations, Violation{Parent: r.Parent, Child: child})
		}
	}
	if len(violations) > 0 {
		return &ConsistencyError{Violations: violations}
	}
	return nil
}
