package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/balkashynov/champ/internal/models"
)

// state is the locally cached copy of the shared store. Only the Reconciler
// mutates it, always under its lock.
type state struct {
	users        map[string]models.User
	sessions     map[string]models.Session
	unlocks      map[string]models.AchievementState
	achievements []models.Achievement

	// digests holds the canonical digest of every cached row, keyed by
	// entity and id, so that re-delivered identical rows are recognised
	digests map[string]string
}

func newState() *state {
	return &state{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.Session),
		unlocks:  make(map[string]models.AchievementState),
		digests:  make(map[string]string),
	}
}

// replace discards the cache and loads snap as the new baseline
func (s *state) replace(snap models.Snapshot) error {
	next := newState()
	for _, u := range snap.Users {
		if err := next.put(models.EntityUsers, u.ID, u); err != nil {
			return err
		}
	}
	for _, sess := range snap.Sessions {
		if err := next.put(models.EntitySessions, sess.ID, sess); err != nil {
			return err
		}
	}
	for _, st := range snap.States {
		if err := next.put(models.EntityUserAchievements, st.ID, st); err != nil {
			return err
		}
	}
	next.achievements = append([]models.Achievement(nil), snap.Achievements...)
	*s = *next
	return nil
}

// put stores a typed row and records its digest
func (s *state) put(entity models.Entity, id string, row any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", entity, id, err)
	}
	digest, err := digestJSON(raw)
	if err != nil {
		return fmt.Errorf("digest %s %s: %w", entity, id, err)
	}
	switch v := row.(type) {
	case models.User:
		s.users[id] = v
	case models.Session:
		s.sessions[id] = v
	case models.AchievementState:
		s.unlocks[id] = v
	default:
		return fmt.Errorf("unsupported row type %T", row)
	}
	s.digests[key(entity, id)] = digest
	return nil
}

// apply folds one change into the cache by entity-id replacement. It
// reports whether anything changed; a row identical to the cached one is a
// no-op.
func (s *state) apply(c models.Change) (bool, error) {
	k := key(c.Entity, c.ID)

	if c.Op == models.OpDelete || len(c.New) == 0 {
		if _, ok := s.digests[k]; !ok {
			return false, nil
		}
		delete(s.digests, k)
		switch c.Entity {
		case models.EntityUsers:
			delete(s.users, c.ID)
		case models.EntitySessions:
			delete(s.sessions, c.ID)
		case models.EntityUserAchievements:
			delete(s.unlocks, c.ID)
		}
		return true, nil
	}

	digest, err := digestJSON(c.New)
	if err != nil {
		return false, fmt.Errorf("digest %s %s: %w", c.Entity, c.ID, err)
	}
	if s.digests[k] == digest {
		return false, nil
	}

	switch c.Entity {
	case models.EntityUsers:
		var u models.User
		if err := json.Unmarshal(c.New, &u); err != nil {
			return false, fmt.Errorf("decode user %s: %w", c.ID, err)
		}
		s.users[c.ID] = u
	case models.EntitySessions:
		var sess models.Session
		if err := json.Unmarshal(c.New, &sess); err != nil {
			return false, fmt.Errorf("decode session %s: %w", c.ID, err)
		}
		s.sessions[c.ID] = sess
	case models.EntityUserAchievements:
		var st models.AchievementState
		if err := json.Unmarshal(c.New, &st); err != nil {
			return false, fmt.Errorf("decode achievement state %s: %w", c.ID, err)
		}
		s.unlocks[c.ID] = st
	default:
		return false, fmt.Errorf("unknown entity %q", c.Entity)
	}
	s.digests[k] = digest
	return true, nil
}

func key(entity models.Entity, id string) string {
	return string(entity) + "/" + id
}

// digestJSON canonicalizes JSON (RFC 8785) and returns its sha256 hex digest
func digestJSON(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
