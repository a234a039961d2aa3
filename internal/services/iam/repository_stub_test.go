package iam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/repository"
)

// stubPrincipals is an in-memory PrincipalRepository with failure hooks.
type stubPrincipals struct {
	mu      sync.Mutex
	byID    map[string]*models.Principal
	seq     int
	mutated int

	findErr  error
	touchErr error
}

var _ repository.PrincipalRepository = (*stubPrincipals)(nil)

func newStubPrincipals() *stubPrincipals {
	return &stubPrincipals{byID: make(map[string]*models.Principal)}
}

func clonePrincipal(p *models.Principal) *models.Principal {
	cp := *p
	cp.Favorites = append([]string{}, p.Favorites...)
	if p.LastLoginAt != nil {
		at := *p.LastLoginAt
		cp.LastLoginAt = &at
	}
	return &cp
}

// seed inserts a principal directly and returns its id.
func (s *stubPrincipals) seed(externalID, email string, role auth.Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p := &models.Principal{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Email:      email,
		Role:       role,
		CreatedAt:  time.Now().UTC().Add(time.Duration(s.seq) * time.Millisecond),
		Favorites:  []string{},
	}
	s.byID[p.ID] = p
	return p.ID
}

func (s *stubPrincipals) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutated
}

func (s *stubPrincipals) get(id string) *models.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byID[id]; ok {
		return clonePrincipal(p)
	}
	return nil
}

func (s *stubPrincipals) Create(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.ExternalID == p.ExternalID || existing.Email == p.Email {
			return fmt.Errorf("create principal: %w", auth.ErrDuplicateIdentity)
		}
	}
	s.seq++
	p.ID = uuid.NewString()
	if p.Role == "" {
		p.Role = auth.RoleUser
	}
	p.CreatedAt = time.Now().UTC().Add(time.Duration(s.seq) * time.Millisecond)
	p.UpdatedAt = p.CreatedAt
	if p.Favorites == nil {
		p.Favorites = []string{}
	}
	s.byID[p.ID] = clonePrincipal(p)
	s.mutated++
	return nil
}

func (s *stubPrincipals) find(match func(*models.Principal) bool) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, p := range s.byID {
		if match(p) {
			return clonePrincipal(p), nil
		}
	}
	return nil, repository.ErrPrincipalNotFound
}

func (s *stubPrincipals) FindByID(_ context.Context, id string) (*models.Principal, error) {
	return s.find(func(p *models.Principal) bool { return p.ID == id })
}

func (s *stubPrincipals) FindByExternalID(_ context.Context, externalID string) (*models.Principal, error) {
	return s.find(func(p *models.Principal) bool { return p.ExternalID == externalID })
}

func (s *stubPrincipals) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	return s.find(func(p *models.Principal) bool { return p.Email == email })
}

func (s *stubPrincipals) Save(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		return repository.ErrPrincipalNotFound
	}
	s.byID[p.ID] = clonePrincipal(p)
	s.mutated++
	return nil
}

func (s *stubPrincipals) list(match func(*models.Principal) bool) []models.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Principal{}
	for _, p := range s.byID {
		if match(p) {
			out = append(out, *clonePrincipal(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *stubPrincipals) ListAll(context.Context) ([]models.Principal, error) {
	return s.list(func(*models.Principal) bool { return true }), nil
}

func (s *stubPrincipals) ListByRole(_ context.Context, role auth.Role) ([]models.Principal, error) {
	return s.list(func(p *models.Principal) bool { return p.Role == role }), nil
}

func (s *stubPrincipals) update(id string, fn func(*models.Principal) error) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrPrincipalNotFound
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()
	s.mutated++
	return clonePrincipal(p), nil
}

func (s *stubPrincipals) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	if s.touchErr != nil {
		return s.touchErr
	}
	_, err := s.update(id, func(p *models.Principal) error {
		p.LastLoginAt = &at
		return nil
	})
	return err
}

func (s *stubPrincipals) SetRole(_ context.Context, id string, role auth.Role) (*models.Principal, error) {
	return s.update(id, func(p *models.Principal) error {
		p.Role = role
		return nil
	})
}

func (s *stubPrincipals) UpdateProfile(_ context.Context, id string, u repository.ProfileUpdate) (*models.Principal, error) {
	return s.update(id, func(p *models.Principal) error {
		if u.DisplayName != nil {
			p.DisplayName = *u.DisplayName
		}
		if u.PhoneNumber != nil {
			p.PhoneNumber = *u.PhoneNumber
		}
		return nil
	})
}

func (s *stubPrincipals) AddFavorite(_ context.Context, id, listingID string) ([]string, error) {
	p, err := s.update(id, func(p *models.Principal) error {
		for _, f := range p.Favorites {
			if f == listingID {
				return fmt.Errorf("add favorite %s: %w", listingID, auth.ErrAlreadyFavorited)
			}
		}
		p.Favorites = append(p.Favorites, listingID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.Favorites, nil
}

func (s *stubPrincipals) RemoveFavorite(_ context.Context, id, listingID string) ([]string, error) {
	p, err := s.update(id, func(p *models.Principal) error {
		kept := p.Favorites[:0]
		for _, f := range p.Favorites {
			if f != listingID {
				kept = append(kept, f)
			}
		}
		p.Favorites = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.Favorites, nil
}

func (s *stubPrincipals) Ping(context.Context) error {
	if s.findErr != nil {
		return errors.New("store unreachable")
	}
	return nil
}
