// Package validate normalizes mapped records before they are written:
// field checks, geocoding with fallback, municipality resolution and the
// duplicate lookups run on creation, and the restricted merge run on update.
package validate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/commune"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/resilience"
	"github.com/acceslibre/erpsync/internal/textnorm"
	"github.com/acceslibre/erpsync/pkg/geocode"
)

// Defaults.
const (
	DefaultAttempts        = 3
	DefaultDuplicateRadius = 75.0
)

var postalCodeRe = regexp.MustCompile(`^(?:0[1-9]|[1-8]\d|9[0-8])\d{3}$`)

var errNoMatch = errors.New("no geocoding match")

// Input is one record to validate. Existing is set when the record updates
// a stored establishment.
type Input struct {
	Record     model.Record
	Existing   *model.Establishment
	EnrichOnly bool
}

// Validator checks and normalizes records.
type Validator struct {
	geocoder geocode.Client
	communes commune.Resolver
	attempts int
	backoff  time.Duration
	radius   float64
	log      *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithAttempts sets how many times an address is geocoded before falling back.
func WithAttempts(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.attempts = n
		}
	}
}

// WithBackoff sets the delay before the first geocoding retry.
func WithBackoff(d time.Duration) Option {
	return func(v *Validator) { v.backoff = d }
}

// WithDuplicateRadius sets the radius in meters of the name-based duplicate lookup.
func WithDuplicateRadius(m float64) Option {
	return func(v *Validator) {
		if m > 0 {
			v.radius = m
		}
	}
}

// New creates a Validator. communes may be nil, in which case records keep
// no municipality reference.
func New(geocoder geocode.Client, communes commune.Resolver, opts ...Option) *Validator {
	v := &Validator{
		geocoder: geocoder,
		communes: communes,
		attempts: DefaultAttempts,
		radius:   DefaultDuplicateRadius,
		log:      zap.L().With(zap.String("component", "validate")),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate returns the record to persist. Lookups go through repo so that
// they see the caller's transaction.
func (v *Validator) Validate(ctx context.Context, repo erp.Repository, in Input) (*model.Record, error) {
	if in.Existing != nil {
		return v.update(in)
	}
	return v.create(ctx, repo, in.Record)
}

func (v *Validator) create(ctx context.Context, repo erp.Repository, rec model.Record) (*model.Record, error) {
	if err := v.checkFields(ctx, repo, &rec); err != nil {
		return nil, err
	}
	if err := v.locate(ctx, &rec); err != nil {
		return nil, err
	}
	if v.communes != nil {
		m, err := v.communes.Resolve(ctx, commune.Query{
			CodeInsee:  rec.CodeInsee,
			CodePostal: rec.CodePostal,
			Nom:        rec.Commune,
		})
		if err != nil {
			return nil, eris.Wrap(err, "validate: resolve commune")
		}
		if m != nil {
			id := m.ID
			rec.CommuneID = &id
		}
	}
	if err := v.checkDuplicates(ctx, repo, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// checkFields normalizes rec in place and collects every field error.
func (v *Validator) checkFields(ctx context.Context, repo erp.Repository, rec *model.Record) error {
	verr := &model.ValidationError{}

	rec.Nom = textnorm.CleanName(rec.Nom)
	if rec.Nom == "" {
		verr.Add("nom", "Ce champ est obligatoire.")
	}
	if cp, ok := model.NormalizePostalCode(rec.CodePostal); ok && postalCodeRe.MatchString(cp) {
		rec.CodePostal = cp
	} else {
		verr.Add("code_postal", "Le code postal n'est pas valide.")
	}
	if !model.ValidSource(rec.Source) {
		verr.Add("source", fmt.Sprintf("Source inconnue : %s", rec.Source))
	}
	if strings.TrimSpace(rec.Commune) == "" {
		verr.Add("commune", "Ce champ est obligatoire.")
	}
	if strings.TrimSpace(rec.Voie) == "" && strings.TrimSpace(rec.LieuDit) == "" {
		verr.Add("voie", "Veuillez entrer une voie OU un lieu-dit")
	}
	if rec.Latitude != nil && (*rec.Latitude < -90 || *rec.Latitude > 90) {
		verr.Add("latitude", "La latitude doit être comprise entre -90 et 90.")
	}
	if rec.Longitude != nil && (*rec.Longitude < -180 || *rec.Longitude > 180) {
		verr.Add("longitude", "La longitude doit être comprise entre -180 et 180.")
	}
	if rec.Siret != "" {
		siret := strings.Join(strings.Fields(rec.Siret), "")
		if !ValidSiret(siret) {
			verr.Add("siret", "Ce numéro SIRET n'est pas valide.")
		}
		rec.Siret = siret
	}
	rec.Telephone = textnorm.CleanPhone(rec.Telephone)

	if rec.Activite != "" {
		ok, err := repo.ActivityExists(ctx, rec.Activite)
		if err != nil {
			return eris.Wrap(err, "validate: activity lookup")
		}
		if !ok {
			verr.Add("activite", fmt.Sprintf("Activité inconnue : %s", rec.Activite))
		}
	}

	checkAccessibility(rec.Accessibility, rec.Published, verr)

	if verr.Empty() {
		return nil
	}
	return verr
}

// checkAccessibility requires at least one answer when required is set and
// checks parent/child consistency.
func checkAccessibility(a access.Answers, required bool, verr *model.ValidationError) {
	if !a.Any() {
		if required {
			verr.Add("accessibilite", "Au moins un champ d'accessibilité requis.")
		}
		return
	}
	var inconsistent *access.ConsistencyError
	if err := a.Check(); errors.As(err, &inconsistent) {
		for _, viol := range inconsistent.Violations {
			verr.Add(viol.Child, fmt.Sprintf("Incompatible avec la réponse à %s.", viol.Parent))
		}
	}
}

// locate geocodes rec, overwriting its address parts on success. Raw
// coordinates are the fallback and are always cleared.
func (v *Validator) locate(ctx context.Context, rec *model.Record) error {
	query := rec.AddressQuery()
	res, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    v.attempts,
		InitialBackoff: v.backoff,
		ShouldRetry:    func(error) bool { return true },
		OnRetry:        resilience.RetryLogger("geocode", "validate"),
	}, func(ctx context.Context) (*geocode.Result, error) {
		res, err := v.geocoder.Geocode(ctx, geocode.AddressInput{Query: query, PostCode: rec.CodePostal})
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errNoMatch
		}
		return res, nil
	})
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "validate: geocode")
	}

	lat, lon := rec.Latitude, rec.Longitude
	rec.Latitude, rec.Longitude = nil, nil

	if err == nil {
		rec.Numero = res.Numero
		rec.Voie = res.Voie
		rec.LieuDit = res.LieuDit
		rec.CodePostal = res.CodePostal
		rec.Commune = res.Commune
		rec.CodeInsee = res.CodeInsee
		rec.GeocodeProvider = res.Provider
		rec.BANID = res.ProviderID
		rec.Geom = &model.Point{Lat: res.Latitude, Lon: res.Longitude}
		return nil
	}

	if lat != nil && lon != nil {
		v.log.Debug("geocoding failed, using source coordinates",
			zap.String("address", query), zap.Error(err))
		rec.Geom = &model.Point{Lat: *lat, Lon: *lon}
		return nil
	}
	v.log.Debug("address not found", zap.String("address", query), zap.Error(err))
	return &model.GeocodeUnavailableError{Address: query}
}

// checkDuplicates looks up the record by source link, then by address and
// activity, then by name nearby.
func (v *Validator) checkDuplicates(ctx context.Context, repo erp.Repository, rec *model.Record) error {
	var matches []model.Establishment

	linked, err := repo.BySource(ctx, rec.Source, rec.SourceID)
	if err != nil {
		return eris.Wrap(err, "validate: lookup by source")
	}
	if linked != nil {
		matches = append(matches, *linked)
	} else if rec.Activite != "" {
		matches, err = repo.Find(ctx, erp.Filter{
			Activite: rec.Activite,
			Address: &model.Address{
				Numero:  rec.Numero,
				Voie:    rec.Voie,
				LieuDit: rec.LieuDit,
				Commune: rec.Commune,
			},
			ExactAddress: true,
		})
		if err != nil {
			return eris.Wrap(err, "validate: lookup by address")
		}
	}
	if err := duplicateOf(matches, "Potentiel doublon par activité/adresse postale avec l'ERP : "); err != nil {
		return err
	}

	if rec.Geom == nil {
		return nil
	}
	nom := strings.ToLower(rec.Nom)
	nearby, err := repo.Find(ctx, erp.Filter{
		Noms:   []string{nom, strings.ReplaceAll(nom, "-", " ")},
		Near:   rec.Geom,
		Radius: v.radius,
		Limit:  1,
	})
	if err != nil {
		return eris.Wrap(err, "validate: lookup nearby")
	}
	return duplicateOf(nearby, fmt.Sprintf("Potentiel doublon par nom/%.0fm alentours avec l'ERP : ", v.radius))
}

// duplicateOf reports the first permanently closed match, else the first
// published one.
func duplicateOf(matches []model.Establishment, reason string) error {
	for _, m := range matches {
		if m.PermanentlyClosed {
			return &model.PermanentlyClosedError{ExistingID: m.ID}
		}
	}
	for _, m := range matches {
		if m.Published {
			return &model.DuplicateError{ExistingID: m.ID, Reason: reason + m.Nom}
		}
	}
	return nil
}

// update applies the mutable part of rec onto the stored establishment.
func (v *Validator) update(in Input) (*model.Record, error) {
	verr := &model.ValidationError{}
	if in.Record.Published && !in.Record.Accessibility.Any() {
		verr.Add("accessibilite", "Au moins un champ d'accessibilité requis.")
		return nil, verr
	}

	out := in.Existing.Record
	out.Accessibility = in.Existing.Accessibility.Clone()
	if out.Accessibility == nil {
		out.Accessibility = access.Answers{}
	}
	if in.Record.ImportEmail != "" {
		out.ImportEmail = in.Record.ImportEmail
	}

	for name, val := range in.Record.Accessibility {
		if access.IsEmpty(val) {
			continue
		}
		// Enrich-only keeps any stored answer, including an explicit false.
		if in.EnrichOnly && out.Accessibility.Get(name) != nil {
			continue
		}
		if err := out.Accessibility.Set(name, val); err != nil {
			verr.Add(name, err.Error())
		}
	}
	checkAccessibility(out.Accessibility, false, verr)
	if !verr.Empty() {
		return nil, verr
	}
	return &out, nil
}

// ValidSiret reports whether s is 14 digits passing the Luhn checksum.
func ValidSiret(s string) bool {
	if len(s) != 14 {
		return false
	}
	sum := 0
	for i, r := range s {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}
