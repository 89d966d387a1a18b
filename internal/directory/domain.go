// Package directory integrates with the organization directory: the external
// console service that owns organizations, branches, teams and team
// memberships. Gatehouse never writes to the directory; it reads team data
// for permission aggregation and keeps a local mirror so names resolve for
// display and team lookups survive directory outages.
package directory

import "time"

// Team is a directory team the principal belongs to.
type Team struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsLeader bool   `json:"is_leader"`
}

// Org is a mirrored organization record.
type Org struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Branch is a mirrored branch record, always belonging to an org.
type Branch struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

// TeamMember ties a principal to a mirrored team.
type TeamMember struct {
	PrincipalID string `json:"principal_id"`
	IsLeader    bool   `json:"is_leader"`
}

// TeamRecord is a full team entry in a snapshot, including membership and
// the permission slugs the team grants.
type TeamRecord struct {
	ID          string       `json:"id"`
	OrgID       string       `json:"org_id"`
	Name        string       `json:"name"`
	Members     []TeamMember `json:"members"`
	Permissions []string     `json:"permissions"`
}

// Snapshot is a full directory listing used to refresh the local mirror.
type Snapshot struct {
	Orgs      []Org        `json:"orgs"`
	Branches  []Branch     `json:"branches"`
	Teams     []TeamRecord `json:"teams"`
	FetchedAt time.Time    `json:"fetched_at"`
}
