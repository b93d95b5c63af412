package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_ReferenceKnownFields(t *testing.T) {
	for _, r := range Rules {
		_, ok := Lookup(r.Parent)
		assert.True(t, ok, r.Parent)
		for _, c := range r.Children {
			_, ok := Lookup(c)
			assert.True(t, ok, c)
		}
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		answers Answers
		child   string
	}{
		{name: "empty", answers: Answers{}},
		{name: "child with true parent", answers: Answers{"stationnement_presence": true, "stationnement_pmr": true}},
		{name: "child without parent", answers: Answers{"stationnement_pmr": true}, child: "stationnement_pmr"},
		{name: "child with false parent", answers: Answers{"stationnement_presence": false, "stationnement_pmr": false}, child: "stationnement_pmr"},
		{name: "steps allowed when not plain-pied", answers: Answers{"entree_plain_pied": false, "entree_marches": 2}},
		{name: "steps rejected when plain-pied", answers: Answers{"entree_plain_pied": true, "entree_marches_rampe": "fixe"}, child: "entree_marches_rampe"},
		{name: "zero steps tolerated", answers: Answers{"entree_plain_pied": true, "entree_marches": 0}},
		{name: "empty text tolerated", answers: Answers{"transport_information": ""}},
		{name: "label families need labels", answers: Answers{"labels_familles_handicap": []string{"moteur"}}, child: "labels_familles_handicap"},
		{name: "label families with labels", answers: Answers{"labels": []string{"th"}, "labels_familles_handicap": []string{"moteur"}}},
		{name: "room answers need rooms", answers: Answers{"accueil_chambre_nombre_accessibles": 0, "accueil_chambre_douche_siege": true}, child: "accueil_chambre_douche_siege"},
		{name: "room answers with rooms", answers: Answers{"accueil_chambre_nombre_accessibles": 2, "accueil_chambre_douche_siege": true}},
		{name: "nested parent", answers: Answers{"entree_vitree": true, "entree_vitree_vitrophanie": true}, child: "entree_vitree"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.answers.Check()
			if tt.child == "" {
				assert.NoError(t, err)
				return
			}
			var ce *ConsistencyError
			require.True(t, errors.As(err, &ce))
			var children []string
			for _, v := range ce.Violations {
				children = append(children, v.Child)
			}
			assert.Contains(t, children, tt.child)
		})
	}
}

func TestConsistencyError_Message(t *testing.T) {
	err := Answers{"stationnement_pmr": true}.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stationnement_pmr requires stationnement_presence")
}
