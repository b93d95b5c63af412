package model

// Source datasets known to the directory.
const (
	SourceAcceslibre       = "acceslibre"
	SourceAcceo            = "acceo"
	SourceAdmin            = "admin"
	SourceAPI              = "api"
	SourceEntrepriseAPI    = "entreprise_api"
	SourceCConforme        = "cconforme"
	SourceGendarmerie      = "gendarmerie"
	SourceLorient          = "lorient"
	SourceNestenn          = "nestenn"
	SourceOpenDataSoft     = "opendatasoft"
	SourcePublic           = "public"
	SourcePublicERP        = "public_erp"
	SourceSAP              = "sap"
	SourceServicePublic    = "service_public"
	SourceSirene           = "sirene"
	SourceTourismeHandicap = "tourisme-handicap"
	SourceTypeform         = "typeform"
	SourceTypeformMusee    = "typeform_musee"
	SourceVaccination      = "centres-vaccination"
	SourceDell             = "dell"
	SourceOutscraper       = "outscraper"
	SourceScrapfly         = "scrapfly"
	SourceTally            = "tally"
	SourceLaPoste          = "laposte"
)

var sources = map[string]bool{
	SourceAcceslibre: true, SourceAcceo: true, SourceAdmin: true, SourceAPI: true,
	SourceEntrepriseAPI: true, SourceCConforme: true, SourceGendarmerie: true,
	SourceLorient: true, SourceNestenn: true, SourceOpenDataSoft: true,
	SourcePublic: true, SourcePublicERP: true, SourceSAP: true,
	SourceServicePublic: true, SourceSirene: true, SourceTourismeHandicap: true,
	SourceTypeform: true, SourceTypeformMusee: true, SourceVaccination: true,
	SourceDell: true, SourceOutscraper: true, SourceScrapfly: true,
	SourceTally: true, SourceLaPoste: true,
}

// ValidSource reports whether s names a known source dataset.
func ValidSource(s string) bool {
	return sources[s]
}

// UserType is the kind of author behind a record.
type UserType string

// Author kinds.
const (
	UserTypeAdmin        UserType = "admin"
	UserTypeGestionnaire UserType = "gestionnaire"
	UserTypePublic       UserType = "public"
	UserTypeSystem       UserType = "system"
)

// Human reports whether a person authored the record, as opposed to an
// automated import.
func (u UserType) Human() bool {
	switch u {
	case UserTypeAdmin, UserTypeGestionnaire, UserTypePublic:
		return true
	default:
		return false
	}
}

// Owner reports whether the record was claimed by the establishment's manager.
func (u UserType) Owner() bool {
	return u == UserTypeGestionnaire
}
