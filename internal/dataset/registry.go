// Package dataset names the importable datasets: where each one is fetched
// from, how it is decoded and which mapper reads it.
package dataset

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/mapper"
	"github.com/acceslibre/erpsync/internal/model"
)

// Definition describes one dataset.
type Definition struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description,omitempty"`
	Mapper      string       `yaml:"mapper"`
	Activite    string       `yaml:"activite,omitempty"`
	Source      string       `yaml:"source,omitempty"`
	Fetch       fetcher.Spec `yaml:"fetch"`
}

// Validate checks the mapper id and the fetch spec.
func (d Definition) Validate() error {
	if d.ID == "" {
		return eris.New("dataset: empty id")
	}
	if _, err := mapper.Get(d.Mapper); err != nil {
		return eris.Wrapf(err, "dataset: %s", d.ID)
	}
	if d.Source != "" && !model.ValidSource(d.Source) {
		return eris.Errorf("dataset: %s: unknown source %q", d.ID, d.Source)
	}
	if d.Fetch.Location == "" {
		return eris.Errorf("dataset: %s has no location, set one in the datasets file or pass --file", d.ID)
	}
	return eris.Wrapf(d.Fetch.Validate(), "dataset: %s", d.ID)
}

// Registry maps dataset ids to their definitions.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry creates a registry with the built-in datasets. Built-ins
// carry no location; it comes from the datasets file or the command line.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}

	r.Register(Definition{
		ID:          "gendarmerie",
		Description: "Unités de gendarmerie accueillant du public",
		Mapper:      mapper.IDGendarmerie,
		Source:      model.SourceGendarmerie,
		Fetch:       fetcher.Spec{Format: fetcher.FormatCSV, Delimiter: ";"},
	})
	r.Register(Definition{
		ID:          "vaccination",
		Description: "Lieux de vaccination contre la covid-19",
		Mapper:      mapper.IDVaccination,
		Activite:    "Centre de vaccination",
		Source:      model.SourceVaccination,
		Fetch:       fetcher.Spec{Format: fetcher.FormatJSON, Path: "features"},
	})
	r.Register(Definition{
		ID:          "service-public",
		Description: "Annuaire de l'administration, services locaux",
		Mapper:      mapper.IDServicePublic,
		Source:      model.SourceServicePublic,
		Fetch:       fetcher.Spec{Format: fetcher.FormatJSON, Path: "service"},
	})
	r.Register(Definition{
		ID:          "nestenn",
		Description: "Agences Nestenn",
		Mapper:      mapper.IDNestenn,
		Activite:    "Agence immobilière",
		Source:      model.SourceNestenn,
		Fetch:       fetcher.Spec{Format: fetcher.FormatCSV},
	})
	r.Register(Definition{
		ID:          "typeform",
		Description: "Réponses au questionnaire Typeform",
		Mapper:      mapper.IDTypeform,
		Source:      model.SourceTypeform,
		Fetch:       fetcher.Spec{Format: fetcher.FormatCSV},
	})
	r.Register(Definition{
		ID:          "generic",
		Description: "Fichier au format d'import acceslibre",
		Mapper:      mapper.IDGeneric,
		Source:      model.SourceAcceslibre,
		Fetch:       fetcher.Spec{Format: fetcher.FormatCSV},
	})

	return r
}

// Register adds d, replacing any definition with the same id in place.
func (r *Registry) Register(d Definition) {
	if _, ok := r.defs[d.ID]; !ok {
		r.order = append(r.order, d.ID)
	}
	r.defs[d.ID] = d
}

// Get returns a dataset by id.
func (r *Registry) Get(id string) (Definition, error) {
	d, ok := r.defs[id]
	if !ok {
		return Definition{}, eris.Errorf("dataset: unknown dataset %q", id)
	}
	return d, nil
}

// All returns every definition in registration order.
func (r *Registry) All() []Definition {
	out := make([]Definition, len(r.order))
	for i, id := range r.order {
		out[i] = r.defs[id]
	}
	return out
}

type file struct {
	Datasets []Definition `yaml:"datasets"`
}

// LoadFile merges the definitions of a YAML file. Fields set in the file
// override the built-in of the same id; unknown ids are added.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: read %s", path)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return eris.Wrapf(err, "dataset: parse %s", path)
	}
	for _, d := range f.Datasets {
		if d.ID == "" {
			return eris.Errorf("dataset: %s: definition without id", path)
		}
		if base, ok := r.defs[d.ID]; ok {
			d = overlay(base, d)
		}
		r.Register(d)
	}
	return nil
}

func overlay(base, o Definition) Definition {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Description, o.Description)
	set(&base.Mapper, o.Mapper)
	set(&base.Activite, o.Activite)
	set(&base.Source, o.Source)
	set(&base.Fetch.Location, o.Fetch.Location)
	set((*string)(&base.Fetch.Format), string(o.Fetch.Format))
	set(&base.Fetch.Delimiter, o.Fetch.Delimiter)
	set(&base.Fetch.Path, o.Fetch.Path)
	set(&base.Fetch.Entries, o.Fetch.Entries)
	set((*string)(&base.Fetch.EntryFormat), string(o.Fetch.EntryFormat))
	if len(o.Fetch.Header) > 0 {
		base.Fetch.Header = o.Fetch.Header
	}
	return base
}
