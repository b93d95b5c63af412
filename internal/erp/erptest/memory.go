// Package erptest provides an in-memory erp.Repository for tests.
package erptest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/model"
)

type link struct {
	source, sourceID string
}

// Memory is an erp.Repository backed by maps. WithTx snapshots the state and
// restores it when fn fails.
type Memory struct {
	mu         sync.Mutex
	nextID     int64
	erps       map[int64]*model.Establishment
	links      map[link]int64
	activities map[string]bool
	clock      time.Time

	// FailCreate makes Create return a storage error.
	FailCreate error
}

// NewMemory creates a Memory repository knowing the given activities.
func NewMemory(activities ...string) *Memory {
	m := &Memory{
		erps:       make(map[int64]*model.Establishment),
		links:      make(map[link]int64),
		activities: make(map[string]bool),
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, a := range activities {
		m.activities[strings.ToLower(a)] = true
	}
	return m
}

var _ erp.Repository = (*Memory)(nil)

func clone(e *model.Establishment) *model.Establishment {
	c := *e
	if e.Accessibility != nil {
		c.Accessibility = e.Accessibility.Clone()
	}
	if e.Geom != nil {
		g := *e.Geom
		c.Geom = &g
	}
	return &c
}

// tick returns strictly increasing timestamps so creation order is stable.
func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

// Seed stores e as is, assigning an id when missing, and returns the id.
func (m *Memory) Seed(e model.Establishment) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		m.nextID++
		e.ID = m.nextID
	} else if e.ID > m.nextID {
		m.nextID = e.ID
	}
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.tick()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Accessibility != nil {
		e.HasAccessibility = true
		if e.CompletionRate == 0 {
			e.CompletionRate = e.Accessibility.CompletionRate()
		}
	}
	m.erps[e.ID] = clone(&e)
	return e.ID
}

// All returns every stored establishment ordered by id.
func (m *Memory) All() []model.Establishment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Establishment, 0, len(m.erps))
	for _, e := range m.erps {
		out = append(out, *clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LinkOf returns the establishment linked to (source, sourceID).
func (m *Memory) LinkOf(source, sourceID string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.links[link{source, sourceID}]
	return id, ok
}

// WithTx implements erp.Repository.
func (m *Memory) WithTx(ctx context.Context, fn func(erp.Repository) error) error {
	m.mu.Lock()
	erps := make(map[int64]*model.Establishment, len(m.erps))
	for id, e := range m.erps {
		erps[id] = clone(e)
	}
	links := make(map[link]int64, len(m.links))
	for k, v := range m.links {
		links[k] = v
	}
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.erps, m.links, m.nextID = erps, links, nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// Get implements erp.Repository.
func (m *Memory) Get(_ context.Context, id int64) (*model.Establishment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.erps[id]
	if !ok {
		return nil, nil
	}
	return clone(e), nil
}

// BySource implements erp.Repository.
func (m *Memory) BySource(_ context.Context, source, sourceID string) (*model.Establishment, error) {
	if source == "" || sourceID == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*model.Establishment
	if id, ok := m.links[link{source, sourceID}]; ok {
		if e, ok := m.erps[id]; ok {
			found = append(found, e)
		}
	}
	for _, e := range m.erps {
		if e.Source == source && e.SourceID == sourceID {
			found = append(found, e)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Published != found[j].Published {
			return found[i].Published
		}
		return found[i].ID < found[j].ID
	})
	return clone(found[0]), nil
}

func eqFold(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}

func exactAddress(a *model.Address, e *model.Establishment) bool {
	if !strings.EqualFold(a.Numero, e.Numero) {
		return false
	}
	if a.Voie != "" || a.LieuDit != "" {
		voie := a.Voie != "" && strings.EqualFold(a.Voie, e.Voie)
		lieuDit := a.LieuDit != "" && strings.EqualFold(a.LieuDit, e.LieuDit)
		if !voie && !lieuDit {
			return false
		}
	}
	return eqFold(a.CodePostal, e.CodePostal) && eqFold(a.Commune, e.Commune)
}

func matches(e *model.Establishment, f erp.Filter) bool {
	if len(f.Noms) > 0 {
		ok := false
		for _, n := range f.Noms {
			if strings.EqualFold(n, e.Nom) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !eqFold(f.Activite, e.Activite) || !eqFold(f.Commune, e.Commune) {
		return false
	}
	if a := f.Address; a != nil && f.ExactAddress {
		if !exactAddress(a, e) {
			return false
		}
	} else if a != nil {
		if !eqFold(a.Numero, e.Numero) || !eqFold(a.Voie, e.Voie) || !eqFold(a.LieuDit, e.LieuDit) ||
			!eqFold(a.CodePostal, e.CodePostal) || !eqFold(a.Commune, e.Commune) {
			return false
		}
	}
	if f.CodePostal != "" && f.CodePostal != e.CodePostal {
		return false
	}
	if f.CommuneID != 0 && (e.CommuneID == nil || *e.CommuneID != f.CommuneID) {
		return false
	}
	if f.ExcludeID != 0 && e.ID == f.ExcludeID {
		return false
	}
	if f.ExcludeSource != "" && e.Source == f.ExcludeSource {
		return false
	}
	if len(f.MetadataPath) > 0 && metadataText(e.Metadata, f.MetadataPath) != f.MetadataValue {
		return false
	}
	if f.Published != nil && e.Published != *f.Published {
		return false
	}
	if f.WithAccessibility && !e.HasAccessibility {
		return false
	}
	if f.Near != nil && (e.Geom == nil || f.Near.DistanceMeters(*e.Geom) > f.Radius) {
		return false
	}
	return true
}

func metadataText(md map[string]any, path []string) string {
	var cur any = md
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	s, _ := cur.(string)
	return s
}

// Find implements erp.Repository.
func (m *Memory) Find(_ context.Context, f erp.Filter) ([]model.Establishment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Establishment
	for _, e := range m.erps {
		if matches(e, f) {
			out = append(out, *clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Near != nil {
			di, dj := f.Near.DistanceMeters(*out[i].Geom), f.Near.DistanceMeters(*out[j].Geom)
			if di != dj {
				return di < dj
			}
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ActivityExists implements erp.Repository.
func (m *Memory) ActivityExists(_ context.Context, nom string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activities[strings.ToLower(nom)], nil
}

// SweepIDs implements erp.Repository.
func (m *Memory) SweepIDs(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*model.Establishment
	for _, e := range m.erps {
		if e.Published || e.PermanentlyClosed {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	ids := make([]int64, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids, nil
}

// Create implements erp.Repository.
func (m *Memory) Create(_ context.Context, r *model.Record) (*model.Establishment, error) {
	if m.FailCreate != nil {
		return nil, &model.StorageError{Op: "create", Err: m.FailCreate}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e := &model.Establishment{ID: m.nextID, UUID: uuid.New(), Record: *r}
	if e.UserType == "" {
		e.UserType = model.UserTypeSystem
	}
	e.CreatedAt = m.tick()
	e.UpdatedAt = e.CreatedAt
	if r.Accessibility.Any() {
		e.HasAccessibility = true
		e.CompletionRate = r.Accessibility.CompletionRate()
	}
	m.erps[e.ID] = clone(e)
	return e, nil
}

// Update implements erp.Repository.
func (m *Memory) Update(_ context.Context, e *model.Establishment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.erps[e.ID]; !ok {
		return &model.StorageError{Op: "update", Err: eris.Errorf("establishment %d not found", e.ID)}
	}
	e.UpdatedAt = m.tick()
	e.HasAccessibility = true
	if e.Accessibility == nil {
		e.Accessibility = access.Answers{}
	}
	e.CompletionRate = e.Accessibility.CompletionRate()
	m.erps[e.ID] = clone(e)
	return nil
}

// SetPublished implements erp.Repository.
func (m *Memory) SetPublished(_ context.Context, id int64, published bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.erps[id]; ok {
		e.Published = published
	}
	return nil
}

// Delete implements erp.Repository.
func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.erps, id)
	for k, v := range m.links {
		if v == id {
			delete(m.links, k)
		}
	}
	return nil
}

// ReplaceSourceLink implements erp.Repository.
func (m *Memory) ReplaceSourceLink(_ context.Context, id int64, source, sourceID string) error {
	if source == "" || sourceID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.links {
		if k.source == source && (v == id || k.sourceID == sourceID) {
			delete(m.links, k)
		}
	}
	m.links[link{source, sourceID}] = id
	return nil
}

// EnsureAccessibility implements erp.Repository.
func (m *Memory) EnsureAccessibility(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.erps[id]; ok && !e.HasAccessibility {
		e.HasAccessibility = true
		if e.Accessibility == nil {
			e.Accessibility = access.Answers{}
		}
	}
	return nil
}

// SetCompletionRate implements erp.Repository.
func (m *Memory) SetCompletionRate(_ context.Context, id int64, rate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.erps[id]; ok {
		e.CompletionRate = rate
	}
	return nil
}
