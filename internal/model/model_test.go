package model

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestAddressQuery(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{name: "full", addr: Address{Numero: "12", Voie: "Rue de la Paix", Commune: "Paris"}, want: "12 Rue de la Paix, Paris"},
		{name: "lieu-dit", addr: Address{LieuDit: "Le Bourg", Commune: "Saint-Jean"}, want: "Le Bourg, Saint-Jean"},
		{name: "number without street", addr: Address{Numero: "3", LieuDit: "Les Granges", Commune: "Aix"}, want: "Les Granges, Aix"},
		{name: "all parts", addr: Address{Numero: "1", Voie: "Grande Rue", LieuDit: "Hameau", Commune: "Vic"}, want: "1 Grande Rue, Hameau, Vic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.AddressQuery())
		})
	}
}

func TestUserType(t *testing.T) {
	assert.True(t, UserTypeAdmin.Human())
	assert.True(t, UserTypePublic.Human())
	assert.True(t, UserTypeGestionnaire.Human())
	assert.False(t, UserTypeSystem.Human())
	assert.False(t, UserType("").Human())
	assert.True(t, UserTypeGestionnaire.Owner())
	assert.False(t, UserTypeAdmin.Owner())
}

func TestValidSource(t *testing.T) {
	assert.True(t, ValidSource(SourceVaccination))
	assert.True(t, ValidSource("gendarmerie"))
	assert.False(t, ValidSource("unknown"))
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{err: &MissingFieldError{Field: "c_gid"}, want: KindMissingField},
		{err: &DiscardedError{Reason: "ÉCARTÉ: x"}, want: KindDiscarded},
		{err: &GeocodeUnavailableError{Address: "x"}, want: KindGeocode},
		{err: NewValidationError("code_postal", "invalide"), want: KindValidation},
		{err: &DuplicateError{ExistingID: 4}, want: KindDuplicate},
		{err: &PermanentlyClosedError{ExistingID: 4}, want: KindClosed},
		{err: &StorageError{Op: "insert", Err: fmt.Errorf("unique violation")}, want: KindStorage},
		{err: eris.Wrap(&DuplicateError{ExistingID: 1}, "validate"), want: KindDuplicate},
		{err: fmt.Errorf("other"), want: KindOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), tt.err.Error())
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Champ c_gid manquant", (&MissingFieldError{Field: "c_gid"}).Error())
	assert.Equal(t, "Adresse non localisable: 1 rue X, Paris", (&GeocodeUnavailableError{Address: "1 rue X, Paris"}).Error())

	v := &ValidationError{}
	assert.True(t, v.Empty())
	v.Add("voie", "requis")
	v.Add("code_postal", "invalide")
	v.Add("voie", "trop long")
	assert.Equal(t, "code_postal: invalide; voie: requis, trop long", v.Error())

	dup := &DuplicateError{ExistingID: 12, Reason: "Potentiel doublon"}
	assert.Equal(t, "Potentiel doublon (pk=12)", dup.Error())

	inner := fmt.Errorf("duplicate key")
	se := &StorageError{Op: "insert erp", Err: inner}
	assert.ErrorIs(t, se, inner)
}

func TestRunCountsTotal(t *testing.T) {
	c := RunCounts{Imported: 3, Skipped: 2, Unpublished: 1, Errors: 4, Duplicated: 9}
	assert.Equal(t, 10, c.Total())
}

func TestPointDistanceMeters(t *testing.T) {
	notreDame := Point{Lat: 48.852968, Lon: 2.349902}
	eiffel := Point{Lat: 48.858370, Lon: 2.294481}

	assert.InDelta(t, 4100, notreDame.DistanceMeters(eiffel), 50)
	assert.InDelta(t, 0, notreDame.DistanceMeters(notreDame), 1e-6)

	// 0.001 degree of latitude is about 111 m
	a := Point{Lat: 45.0, Lon: 5.0}
	b := Point{Lat: 45.001, Lon: 5.0}
	assert.InDelta(t, 111.2, a.DistanceMeters(b), 0.5)
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Lat: 48.85, Lon: 2.35}.Valid())
	assert.False(t, Point{Lat: 91, Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: -181}.Valid())
}

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"75002", "75002", true},
		{" 1500 ", "01500", true},
		{"1500", "01500", true},
		{"150", "", false},
		{"750022", "", false},
		{"7500A", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePostalCode(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
