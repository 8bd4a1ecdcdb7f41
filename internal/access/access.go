// Package access resolves what a signed-in actor may see and change.
//
// Every campus-scoped query goes through Resolve and Access.Filter so that
// rows stored under a campus's legacy short name ("Malvar") stay visible to
// users whose campus is stored under the canonical name ("JPLPC Malvar"),
// and the other way round.
package access

import (
	"strings"

	"github.com/culturearts/portal/internal/model"
)

// DefaultHQCampus is the campus whose staff see every campus.
const DefaultHQCampus = "Pablo Borbon"

// DefaultAliases maps legacy short campus names to canonical names.
var DefaultAliases = map[string]string{
	"Malvar":  "JPLPC Malvar",
	"Nasugbu": "ARASOF Nasugbu",
}

// DefaultViewOnly lists accounts that keep HQ visibility but may not write.
var DefaultViewOnly = []string{
	"mark.central@g.batstate-u.edu.ph",
}

// Actor is the request-scoped identity taken from the session.
type Actor struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Campus string `json:"campus"`
}

// Policy holds the campus alias table and the view-only denylist.
// It is built once at startup and read concurrently afterwards.
type Policy struct {
	hq       string
	lookup   map[string]string // lower(name) -> canonical
	legacy   map[string]string // canonical -> legacy short name
	viewOnly map[string]bool   // lower(email)
}

// NewPolicy builds a policy. aliases maps short name to canonical name.
func NewPolicy(hq string, aliases map[string]string, viewOnly []string) *Policy {
	p := &Policy{
		hq:       strings.TrimSpace(hq),
		lookup:   make(map[string]string, len(aliases)*2),
		legacy:   make(map[string]string, len(aliases)),
		viewOnly: make(map[string]bool, len(viewOnly)),
	}
	for short, canonical := range aliases {
		short, canonical = strings.TrimSpace(short), strings.TrimSpace(canonical)
		if short == "" || canonical == "" || short == canonical {
			continue
		}
		p.lookup[strings.ToLower(short)] = canonical
		p.lookup[strings.ToLower(canonical)] = canonical
		p.legacy[canonical] = short
	}
	for _, email := range viewOnly {
		if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
			p.viewOnly[e] = true
		}
	}
	return p
}

// DefaultPolicy returns the policy with the built-in campus table.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultHQCampus, DefaultAliases, DefaultViewOnly)
}

// HQCampus returns the cross-campus campus name.
func (p *Policy) HQCampus() string { return p.hq }

// Canonical normalises a raw campus name. Names outside the alias table
// are returned trimmed but otherwise unchanged.
func (p *Policy) Canonical(raw string) string {
	name := strings.TrimSpace(raw)
	if c, ok := p.lookup[strings.ToLower(name)]; ok {
		return c
	}
	return name
}

// Legacy returns the short alias of a canonical campus, or "".
func (p *Policy) Legacy(canonical string) string {
	return p.legacy[canonical]
}

// IsViewOnly reports whether email is on the view-only denylist.
func (p *Policy) IsViewOnly(email string) bool {
	return p.viewOnly[strings.ToLower(strings.TrimSpace(email))]
}

// Access is the resolved permission set for one request.
type Access struct {
	Campus     string `json:"campus"`
	Legacy     string `json:"legacy_campus,omitempty"`
	CanViewAll bool   `json:"can_view_all"`
	CanManage  bool   `json:"can_manage"`
}

// Resolve computes the access of an actor. It does not authenticate;
// callers reject requests without a session before calling it.
func (p *Policy) Resolve(actor Actor) Access {
	campus := p.Canonical(actor.Campus)
	a := Access{
		Campus:    campus,
		Legacy:    p.Legacy(campus),
		CanManage: !p.IsViewOnly(actor.Email),
	}
	switch {
	case actor.Role == model.RoleAdmin:
		a.CanViewAll = true
	case campus == p.hq && (actor.Role == model.RoleHead || actor.Role == model.RoleStaff || actor.Role == model.RoleCentral):
		a.CanViewAll = true
	}
	return a
}

// Filter returns a WHERE fragment restricting column to the actor's campus,
// with its bound arguments. The fragment is safe to AND with other conditions.
// Matching ignores case on every driver.
func (a Access) Filter(column string) (string, []any) {
	if a.CanViewAll {
		return "1=1", nil
	}
	if a.Legacy != "" {
		return "(LOWER(" + column + ") = ? OR LOWER(" + column + ") = ?)",
			[]any{strings.ToLower(a.Campus), strings.ToLower(a.Legacy)}
	}
	return "LOWER(" + column + ") = ?", []any{strings.ToLower(a.Campus)}
}

// Allows reports whether a row stored under campus is visible.
// It matches exactly the rows Filter would select.
func (a Access) Allows(campus string) bool {
	if a.CanViewAll {
		return true
	}
	return strings.EqualFold(campus, a.Campus) || (a.Legacy != "" && strings.EqualFold(campus, a.Legacy))
}
