package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entity names a table carried on the change feed
type Entity string

const (
	EntitySessions         Entity = "sessions"
	EntityUsers            Entity = "users"
	EntityUserAchievements Entity = "user_achievements"
)

// Op is the operation tag of a change
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one row-level change. New and Old carry the full row as JSON;
// New is empty for deletes, Old is empty for inserts.
type Change struct {
	Entity Entity          `json:"entity"`
	Op     Op              `json:"op"`
	ID     string          `json:"id"`
	New    json.RawMessage `json:"new,omitempty"`
	Old    json.RawMessage `json:"old,omitempty"`
}

// Commit is the set of changes written by one store transaction. Observers
// apply a commit as a whole so that no partially applied transaction is
// ever visible.
type Commit struct {
	Seq         uint64    `json:"seq"`
	CommittedAt time.Time `json:"committed_at"`
	Changes     []Change  `json:"changes"`
}

// NewChange encodes the given rows into a change. Either row may be nil.
func NewChange(entity Entity, op Op, id string, newRow, oldRow any) (Change, error) {
	c := Change{Entity: entity, Op: op, ID: id}
	if newRow != nil {
		raw, err := json.Marshal(newRow)
		if err != nil {
			return Change{}, fmt.Errorf("encode new %s row: %w", entity, err)
		}
		c.New = raw
	}
	if oldRow != nil {
		raw, err := json.Marshal(oldRow)
		if err != nil {
			return Change{}, fmt.Errorf("encode old %s row: %w", entity, err)
		}
		c.Old = raw
	}
	return c, nil
}

// SessionChange builds a change for a session row
func SessionChange(op Op, newRow, oldRow *Session) (Change, error) {
	id := rowID(newRow, oldRow, func(s *Session) string { return s.ID })
	return NewChange(EntitySessions, op, id, nilIfEmpty(newRow), nilIfEmpty(oldRow))
}

// UserChange builds a change for a user row
func UserChange(op Op, newRow, oldRow *User) (Change, error) {
	id := rowID(newRow, oldRow, func(u *User) string { return u.ID })
	return NewChange(EntityUsers, op, id, nilIfEmpty(newRow), nilIfEmpty(oldRow))
}

// AchievementStateChange builds a change for a user_achievements row
func AchievementStateChange(op Op, newRow, oldRow *AchievementState) (Change, error) {
	id := rowID(newRow, oldRow, func(a *AchievementState) string { return a.ID })
	return NewChange(EntityUserAchievements, op, id, nilIfEmpty(newRow), nilIfEmpty(oldRow))
}

func rowID[T any](newRow, oldRow *T, id func(*T) string) string {
	if newRow != nil {
		return id(newRow)
	}
	if oldRow != nil {
		return id(oldRow)
	}
	return ""
}

// nilIfEmpty turns a typed nil pointer into an untyped nil so NewChange
// leaves the payload empty instead of encoding "null".
func nilIfEmpty[T any](row *T) any {
	if row == nil {
		return nil
	}
	return row
}

// Snapshot is a full read of the shared state used as a reconciliation baseline
type Snapshot struct {
	Users        []User             `json:"users"`
	Sessions     []Session          `json:"sessions"`
	States       []AchievementState `json:"states"`
	Achievements []Achievement      `json:"achievements"`
}

// ClosedSession is the outcome of closing a session: the closed row and the
// owning user with the duration already added to the weekly total
type ClosedSession struct {
	Session     Session `json:"session"`
	User        User    `json:"user"`
	PrevSession Session `json:"prev_session"`
	PrevUser    User    `json:"prev_user"`
}
