// Package memstore implements store.Store in memory.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/store"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	profiles map[int64]*model.Profile
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		profiles: make(map[int64]*model.Profile),
		now:      time.Now,
	}
}

func (s *Store) Insert(_ context.Context, p *model.Profile) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	c := clone(p)
	c.EnsureRequestID()
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.profiles[c.ID] = c
	p.ID = c.ID
	p.RequestID = c.RequestID
	p.CreatedAt = c.CreatedAt
	return c.ID, nil
}

func (s *Store) Get(_ context.Context, id int64) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return clone(p), nil
}

func (s *Store) Update(_ context.Context, id int64, u model.ProfileUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return model.ErrProfileNotFound
	}
	c := clone(p)
	if err := u.Apply(c); err != nil {
		return err
	}
	c.UpdatedAt = s.now()
	s.profiles[id] = c
	return nil
}

func (s *Store) ClearReason(_ context.Context, f store.Filter, r model.Reason) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.profiles {
		if !f.Match(p) || !p.Reason.Has(r) {
			continue
		}
		p.Reason = p.Reason.Without(r)
		p.UpdatedAt = s.now()
		n++
	}
	return n, nil
}

func (s *Store) DeleteWhere(_ context.Context, f store.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.profiles {
		if f.Match(p) {
			delete(s.profiles, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) TopByDuration(_ context.Context, f store.Filter, limit, offset int) ([]model.Profile, error) {
	s.mu.RLock()
	matched := s.match(f)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Duration != matched[j].Duration {
			return matched[i].Duration > matched[j].Duration
		}
		return matched[i].ID > matched[j].ID
	})
	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit >= 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) CountDistinct(_ context.Context, field store.Field, f store.Filter) (int64, error) {
	if !field.Valid() {
		return 0, store.InvalidFieldError(field)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, p := range s.profiles {
		if f.Match(p) {
			k, _ := value(p, field)
			seen[k] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (s *Store) SumGroupBy(_ context.Context, by, sum store.Field, f store.Filter) ([]store.Group, error) {
	if !by.Valid() {
		return nil, store.InvalidFieldError(by)
	}
	if !sum.Numeric() {
		return nil, store.InvalidFieldError(sum)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make(map[string]*store.Group)
	for _, p := range s.profiles {
		if !f.Match(p) {
			continue
		}
		k, _ := value(p, by)
		g, ok := groups[k]
		if !ok {
			g = &store.Group{Key: k}
			groups[k] = g
		}
		_, v := value(p, sum)
		g.Count++
		g.Sum += v
	}
	r := make([]store.Group, 0, len(groups))
	for _, g := range groups {
		r = append(r, *g)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Key < r[j].Key })
	return r, nil
}

func (s *Store) Close() error { return nil }

// Len returns the number of stored profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// match returns copies of the matching profiles without their flame data.
func (s *Store) match(f store.Filter) []model.Profile {
	var r []model.Profile
	for _, p := range s.profiles {
		if f.Match(p) {
			c := *clone(p)
			c.FlameData = nil
			r = append(r, c)
		}
	}
	return r
}

// value returns the string and numeric forms of a field.
func value(p *model.Profile, field store.Field) (string, float64) {
	switch field {
	case store.FieldScope:
		return p.Scope, 0
	case store.FieldScriptType:
		return string(p.ScriptType), 0
	case store.FieldDuration:
		return strconv.FormatInt(int64(p.Duration), 10), float64(p.Duration)
	case store.FieldSampleCount:
		return strconv.FormatInt(p.SampleCount, 10), float64(p.SampleCount)
	case store.FieldDataSize:
		return strconv.Itoa(p.DataSize), float64(p.DataSize)
	}
	return "", 0
}

func clone(p *model.Profile) *model.Profile {
	c := *p
	if p.FinishedAt != nil {
		t := *p.FinishedAt
		c.FinishedAt = &t
	}
	if p.FlameData != nil {
		c.FlameData = append([]byte(nil), p.FlameData...)
	}
	return &c
}
