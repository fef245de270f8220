package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// registerIDAttempts bounds id regeneration after an id collision.
	registerIDAttempts = 3
)

type IdentityReader interface {
	GetIdentity(ctx context.Context, id string) (*Identity, error)
}

type IdentityStore interface {
	IdentityReader
	FindIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	ListIdentities(ctx context.Context) ([]*Identity, error)
	AddIdentity(ctx context.Context, i *Identity) error
	DeleteIdentity(ctx context.Context, id string) (bool, error)
	// SeedIdentities inserts seeds only when no identity exists yet and
	// reports whether it did.
	SeedIdentities(ctx context.Context, seeds []*Identity) (bool, error)
	AddAudit(entry AuditEntry)
}

type IdentityConfig struct {
	// DemoMode skips password verification on login.
	DemoMode bool
	// SeedPassword, when set, becomes the password of every seeded identity.
	SeedPassword string
	Events       Publisher
}

type IdentityService struct {
	store        IdentityStore
	events       Publisher
	now          func() time.Time
	idGen        func() string
	hash         func(password string) ([]byte, error)
	demoMode     bool
	seedPassword string
}

type IdentityOverview struct {
	Total     int          `json:"total"`
	Patients  int          `json:"patients"`
	Providers int          `json:"providers"`
	Admins    int          `json:"admins"`
	ByRole    map[Role]int `json:"by_role"`
}

func NewIdentityService(store IdentityStore, cfg IdentityConfig) *IdentityService {
	return &IdentityService{
		store:  store,
		events: cfg.Events,
		now:    utcNow,
		idGen:  func() string { return shortID(9) },
		hash: func(password string) ([]byte, error) {
			return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		},
		demoMode:     cfg.DemoMode,
		seedPassword: cfg.SeedPassword,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func (s *IdentityService) Register(ctx context.Context, email, password, role, name string) (*Identity, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, NewValidationError(ReasonInvalidEmail, "valid email required")
	}
	if len(password) < minPasswordLen {
		return nil, NewValidationError(ReasonWeakPassword, "password must be at least 6 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError(ReasonNameRequired, "name required")
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.FindIdentityByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewDuplicateError(ReasonDuplicateEmail, "email exists")
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	id := &Identity{Email: email, Name: name, Role: r, PassHash: hash, CreatedAt: s.now()}
	if err := s.insertWithFreshID(ctx, id); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: id.ID, Action: "identity.register", Target: id.ID, Note: string(r)})
	publish(ctx, s.events, Event{Type: EventIdentityRegistered, Actor: id.ID, Target: id.ID, Kind: string(r), At: id.CreatedAt})
	return id, nil
}

// insertWithFreshID stores id under a generated id, drawing a new one when
// the store reports a collision on the id rather than the email.
func (s *IdentityService) insertWithFreshID(ctx context.Context, id *Identity) error {
	var err error
	for attempt := 0; attempt < registerIDAttempts; attempt++ {
		id.ID = s.idGen()
		err = s.store.AddIdentity(ctx, id)
		if !IsCode(err, ErrorConflict) {
			return err
		}
		if se, _ := AsServiceError(err); se.Reason == ReasonDuplicateEmail {
			return err
		}
		existing, ferr := s.store.FindIdentityByEmail(ctx, id.Email)
		if ferr != nil {
			return ferr
		}
		if existing != nil {
			return NewDuplicateError(ReasonDuplicateEmail, "email exists")
		}
		log.Printf("services: identity id %s already taken, regenerating", id.ID)
	}
	return err
}

func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, NewValidationError(ReasonInvalidEmail, "email required")
	}
	id, err := s.store.FindIdentityByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, NewNotFoundError("identity not found")
	}
	if s.demoMode {
		return id, nil
	}
	if len(id.PassHash) == 0 {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(id.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	return id, nil
}

// LookupByID returns nil without error when no identity has id.
func (s *IdentityService) LookupByID(ctx context.Context, id string) (*Identity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return s.store.GetIdentity(ctx, id)
}

func (s *IdentityService) ListAll(ctx context.Context) ([]*Identity, error) {
	return s.store.ListIdentities(ctx)
}

// ListVisible returns what the actor may see: everyone for admins, patients
// for providers. The result is grouped by role, then ordered by email.
func (s *IdentityService) ListVisible(ctx context.Context, actor Actor) ([]*Identity, error) {
	all, err := s.store.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Identity
	switch {
	case actor.Authorize(ActionListIdentities, "") == nil:
		out = all
	case actor.Authorize(ActionListPatients, "") == nil:
		out = patientsOnly(all)
	default:
		return nil, NewForbiddenError("forbidden")
	}
	sortForDisplay(out)
	return out, nil
}

func (s *IdentityService) ListPatients(ctx context.Context, actor Actor) ([]*Identity, error) {
	if err := actor.Authorize(ActionListPatients, ""); err != nil {
		return nil, err
	}
	all, err := s.store.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	out := patientsOnly(all)
	sortForDisplay(out)
	return out, nil
}

func (s *IdentityService) Overview(ctx context.Context, actor Actor) (*IdentityOverview, error) {
	if err := actor.Authorize(ActionListIdentities, ""); err != nil {
		return nil, err
	}
	all, err := s.store.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	ov := &IdentityOverview{Total: len(all), ByRole: map[Role]int{}}
	for _, id := range all {
		ov.ByRole[id.Role]++
		switch {
		case id.Role == RolePatient:
			ov.Patients++
		case id.Role == RoleAdmin:
			ov.Admins++
		case id.Role.IsProvider():
			ov.Providers++
		}
	}
	return ov, nil
}

// Remove deletes an identity. Plans and progress owned by it are left in
// place.
func (s *IdentityService) Remove(ctx context.Context, actor Actor, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError(ReasonIDRequired, "id required")
	}
	if err := actor.Authorize(ActionDeleteIdentity, id); err != nil {
		return err
	}
	ok, err := s.store.DeleteIdentity(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("identity not found")
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor.ID, Action: "identity.remove", Target: id})
	publish(ctx, s.events, Event{Type: EventIdentityRemoved, Actor: actor.ID, Target: id, At: s.now()})
	return nil
}

type seedIdentity struct {
	id, name, email string
	role            Role
}

var defaultSeeds = []seedIdentity{
	{"1", "Devansh Popli", "superdevansh2006@gmail.com", RoleAdmin},
	{"2", "Ankit", "ankit@gmail.com", RolePatient},
	{"3", "Akash", "akashpopli@gmail.com", RoleDoctor},
	{"4", "Gujar", "ridhikagurjar@gmail.com", RoleNutritionist},
	{"5", "gopinathswamy", "gopi@gmail.com", RoleTrainer},
}

// EnsureSeedData populates one identity per role when the store is empty.
// It is safe to call any number of times.
func (s *IdentityService) EnsureSeedData(ctx context.Context) (bool, error) {
	var hash []byte
	if s.seedPassword != "" {
		h, err := s.hash(s.seedPassword)
		if err != nil {
			return false, err
		}
		hash = h
	}
	now := s.now()
	seeds := make([]*Identity, 0, len(defaultSeeds))
	for _, sd := range defaultSeeds {
		seeds = append(seeds, &Identity{ID: sd.id, Name: sd.name, Email: sd.email, Role: sd.role, PassHash: hash, CreatedAt: now})
	}
	inserted, err := s.store.SeedIdentities(ctx, seeds)
	if err != nil {
		return false, err
	}
	if inserted {
		log.Printf("services: seeded %d default identities", len(seeds))
		s.store.AddAudit(AuditEntry{Time: now, Actor: "system", Action: "identity.seed"})
	}
	return inserted, nil
}

func patientsOnly(all []*Identity) []*Identity {
	out := make([]*Identity, 0, len(all))
	for _, id := range all {
		if id.Role == RolePatient {
			out = append(out, id)
		}
	}
	return out
}

func roleRank(r Role) int {
	for i, v := range Roles {
		if v == r {
			return i
		}
	}
	return len(Roles)
}

func sortForDisplay(ids []*Identity) {
	sort.SliceStable(ids, func(i, j int) bool {
		ri, rj := roleRank(ids[i].Role), roleRank(ids[j].Role)
		if ri != rj {
			return ri < rj
		}
		return ids[i].Email < ids[j].Email
	})
}
