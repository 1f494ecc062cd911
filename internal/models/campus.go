package models

import "time"

// Campus is the tenant unit scoping most entities.
type Campus struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	City      string    `db:"city" json:"city"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TenantScope restricts queries to the caller's campus. It is threaded
// explicitly through every service and repository call; there is no ambient
// campus context. Owners may operate across all campuses.
type TenantScope struct {
	CampusID    string
	AllCampuses bool
}

// ScopeForCampus returns a scope pinned to a single campus.
func ScopeForCampus(campusID string) TenantScope {
	return TenantScope{CampusID: campusID}
}

// ScopeAllCampuses returns an unrestricted scope.
func ScopeAllCampuses() TenantScope {
	return TenantScope{AllCampuses: true}
}

// Narrow pins an all-campus scope to one campus when a filter is supplied.
func (s TenantScope) Narrow(campusID string) TenantScope {
	if campusID == "" {
		return s
	}
	return TenantScope{CampusID: campusID}
}
