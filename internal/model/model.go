// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is a user's access level.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleUser   Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleUser:
		return true
	}
	return false
}

// HasUniversalAccess reports whether the role bypasses card availability entirely.
// Every availability and course-access check goes through this predicate.
func HasUniversalAccess(r Role) bool {
	return r == RoleAdmin || r == RoleEditor
}

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry
}

// Principal is the authenticated caller extracted from an access token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// User is an account. PwdHash and RefreshHash never leave the server.
type User struct {
	ID          uuid.UUID
	Email       string
	Phone       string
	FirstName   string
	LastName    string
	Patronymic  string
	Role        Role
	BranchID    *int64
	PostID      *int64
	CourseID    *int64
	PwdHash     string
	RefreshHash string
	CreatedAt   time.Time
	LastSeenAt  *time.Time
}

// FullName joins name segments as "Last First Patronymic".
func (u User) FullName() string {
	name := u.LastName + " " + u.FirstName
	if u.Patronymic != "" {
		name += " " + u.Patronymic
	}
	return name
}

// UserFilter narrows user listings. Empty fields do not filter.
type UserFilter struct {
	BranchIDs []int64
	PostIDs   []int64
	Name      string
}

// Branch is an organisational unit.
type Branch struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Post is a job title.
type Post struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Course owns cards, relations and per-user availability records.
type Course struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Position is presentation metadata of a card on the course canvas.
type Position struct {
	X float64
	Y float64
}

// Card is a lesson node. ParentID is the source of truth for the tree;
// children are resolved through explicit repository calls.
type Card struct {
	ID        string
	CourseID  int64
	ParentID  *string
	Position  Position
	Label     string
	Type      string
	Content   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CardPatch carries optional card field updates.
type CardPatch struct {
	Position *Position
	Label    *string
	Type     *string
	Content  json.RawMessage
}

// Relation is an explicit parent→child edge. It is a derived index of the card tree.
type Relation struct {
	ID       uuid.UUID
	CourseID int64
	ParentID string
	ChildID  string
}

// Availability is a per-user, per-course record of card statuses.
// Statuses maps card id to exactly one status, so groups are disjoint by construction.
type Availability struct {
	ID       int64
	UserID   uuid.UUID
	CourseID int64
	Version  int64
	Statuses map[string]CardStatus
}

// Group returns the ids of cards in the given status group.
func (a *Availability) Group(s CardStatus) []string {
	var ids []string
	for id, st := range a.Statuses {
		if st == s {
			ids = append(ids, id)
		}
	}
	return ids
}

// CardView is a card as seen by a specific viewer.
type CardView struct {
	Card
	Status    CardStatus
	ClassName string
}

// Statistic summarises a user's progress in a course.
type Statistic struct {
	AllCards        int
	CardsPassed     int
	ProgressPercent int
}
