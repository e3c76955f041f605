package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"euphony/internal/apperr"

	"github.com/google/uuid"
)

// MemoryGateway is an in-process identity provider for local development
// and tests. It follows the same error semantics as KeycloakGateway.
type MemoryGateway struct {
	mu          sync.RWMutex
	users       map[string]*memoryUser
	catalog     map[string]bool
	defaultRole string
}

type memoryUser struct {
	record   Record
	password string
	roles    map[string]bool
}

// NewMemory creates an empty provider whose client defines the given roles
// plus defaultRole. An empty defaultRole leaves the client unconfigured, so
// AssignRoles fails with NotFound.
func NewMemory(defaultRole string, roles ...string) *MemoryGateway {
	g := &MemoryGateway{
		users:       make(map[string]*memoryUser),
		defaultRole: defaultRole,
	}
	if defaultRole != "" {
		g.catalog = map[string]bool{defaultRole: true}
		for _, r := range roles {
			g.catalog[r] = true
		}
	}
	return g
}

func (g *MemoryGateway) FindAll(ctx context.Context) ([]Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	records := make([]Record, 0, len(g.users))
	for _, u := range g.users {
		records = append(records, u.record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Username < records[j].Username })
	return records, nil
}

func (g *MemoryGateway) FindByUsername(ctx context.Context, username string) (*Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, u := range g.users {
		if u.record.Username == username {
			r := u.record
			r.Roles = sortedKeys(u.roles)
			return &r, nil
		}
	}
	return nil, apperr.NotFound("identity.find_by_username", fmt.Sprintf("identity %s not found", username))
}

func (g *MemoryGateway) FindByID(ctx context.Context, id string) (*Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.users[id]
	if !ok {
		return nil, apperr.NotFound("identity.find_by_id", fmt.Sprintf("identity %s not found", id))
	}
	r := u.record
	return &r, nil
}

func (g *MemoryGateway) Create(ctx context.Context, fields UserFields) (string, error) {
	const op = "identity.create"
	if strings.TrimSpace(fields.Username) == "" || strings.TrimSpace(fields.Email) == "" {
		return "", apperr.Validation(op, map[string]string{"identity": "username and email are required"})
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkUnique(op, "", fields); err != nil {
		return "", err
	}

	enabled := true
	if fields.Enabled != nil {
		enabled = *fields.Enabled
	}
	id := uuid.NewString()
	g.users[id] = &memoryUser{
		record: Record{
			ID:            id,
			Username:      fields.Username,
			Email:         fields.Email,
			FirstName:     fields.FirstName,
			LastName:      fields.LastName,
			Enabled:       enabled,
			EmailVerified: true,
		},
		roles: make(map[string]bool),
	}
	return id, nil
}

func (g *MemoryGateway) checkUnique(op, self string, fields UserFields) error {
	for id, u := range g.users {
		if id == self {
			continue
		}
		if fields.Username != "" && strings.EqualFold(u.record.Username, fields.Username) {
			return apperr.Conflict(op, "User exists with same username")
		}
		if fields.Email != "" && strings.EqualFold(u.record.Email, fields.Email) {
			return apperr.Conflict(op, "User exists with same email")
		}
	}
	return nil
}

func (g *MemoryGateway) SetPassword(ctx context.Context, id, password string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[id]
	if !ok {
		return apperr.NotFound("identity.set_password", fmt.Sprintf("identity %s not found", id))
	}
	u.password = password
	return nil
}

func (g *MemoryGateway) Update(ctx context.Context, id string, fields UserFields) error {
	const op = "identity.update"
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[id]
	if !ok {
		return apperr.NotFound(op, fmt.Sprintf("identity %s not found", id))
	}
	if err := g.checkUnique(op, id, fields); err != nil {
		return err
	}
	if fields.Username != "" || fields.Replace {
		u.record.Username = fields.Username
	}
	if fields.Email != "" || fields.Replace {
		u.record.Email = fields.Email
	}
	if fields.FirstName != "" || fields.Replace {
		u.record.FirstName = fields.FirstName
	}
	if fields.LastName != "" || fields.Replace {
		u.record.LastName = fields.LastName
	}
	if fields.Enabled != nil {
		u.record.Enabled = *fields.Enabled
	}
	return nil
}

func (g *MemoryGateway) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[id]; !ok {
		return apperr.NotFound("identity.delete", fmt.Sprintf("identity %s not found", id))
	}
	delete(g.users, id)
	return nil
}

func (g *MemoryGateway) AssignRoles(ctx context.Context, id string, names []string) ([]string, error) {
	const op = "identity.assign_roles"
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.catalog == nil {
		return nil, apperr.NotFound(op, "client is not configured")
	}
	u, ok := g.users[id]
	if !ok {
		return nil, apperr.NotFound(op, fmt.Sprintf("identity %s not found", id))
	}

	var assigned []string
	seen := make(map[string]bool)
	for _, n := range names {
		if g.catalog[n] && !seen[n] {
			seen[n] = true
			assigned = append(assigned, n)
		}
	}
	if len(assigned) == 0 {
		assigned = []string{g.defaultRole}
	}
	for _, n := range assigned {
		u.roles[n] = true
	}
	return assigned, nil
}

func (g *MemoryGateway) GetRoles(ctx context.Context, id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.users[id]
	if !ok {
		return nil, apperr.NotFound("identity.get_roles", fmt.Sprintf("identity %s not found", id))
	}
	return sortedKeys(u.roles), nil
}

// Password returns the stored password of id.
func (g *MemoryGateway) Password(id string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if u, ok := g.users[id]; ok {
		return u.password
	}
	return ""
}

func (g *MemoryGateway) Close() error { return nil }

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
