package sessions

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrSkippedState = errors.New("session cannot skip a state")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether a client-supplied identifier is acceptable as a session key.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Patch is a partial update of a session. Empty strings leave fields untouched and
// Reach stamps the timestamp of the given state when it is not stamped yet.
type Patch struct {
	QRLocation    string
	AgeRange      string
	Gender        string
	BirthProvince string
	Education     string
	Reach         models.State
}

type entry struct {
	rec     models.Record
	deleted bool
}

// Store keeps sessions in process memory, keyed by session id. Sessions that see no
// update for the idle timeout are swept by Sweep; there is no background janitor.
type Store struct {
	cache   *cache.Cache
	now     func() time.Time
	mu      sync.Mutex
	expired []models.Record
}

// NewStore creates a store whose sessions expire after idle without updates.
func NewStore(idle time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{
		cache: cache.New(idle, 0),
		now:   now,
	}
	s.cache.OnEvicted(s.onEvicted)
	return s
}

// GetOrCreate returns the session for id, creating it on first sight.
func (s *Store) GetOrCreate(id, userAgent string, tracked bool) (models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if x, ok := s.cache.Get(id); ok {
		e := x.(*entry)
		s.cache.Set(id, e, cache.DefaultExpiration)
		return e.rec.Clone(), false
	}

	now := s.now()
	e := &entry{rec: models.Record{
		SessionID: id,
		OpenedAt:  &now,
		Status:    models.StatusInProgress,
		UserAgent: userAgent,
		CreatedAt: now,
		Tracked:   tracked,
	}}
	s.cache.Set(id, e, cache.DefaultExpiration)
	return e.rec.Clone(), true
}

// Resume returns the live session for id and restarts its idle timer. Sessions that
// expired or were never created here are not resurrected.
func (s *Store) Resume(id string) (models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, ok := s.cache.Get(id)
	if !ok {
		return models.Record{}, false
	}
	e := x.(*entry)
	s.cache.Set(id, e, cache.DefaultExpiration)
	return e.rec.Clone(), true
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, ok := s.cache.Get(id)
	if !ok {
		return models.Record{}, false
	}
	return x.(*entry).rec.Clone(), true
}

// Update applies p to the session and refreshes its idle timer. changed is false when
// every value in p was already recorded, in which case nothing is re-stamped.
func (s *Store) Update(id string, p Patch) (rec models.Record, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, ok := s.cache.Get(id)
	if !ok {
		return models.Record{}, false, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	e := x.(*entry)

	if p.Reach > e.rec.State()+1 {
		return e.rec.Clone(), false, fmt.Errorf("update %s from %s to %s: %w", id, e.rec.State(), p.Reach, ErrSkippedState)
	}

	changed = setField(&e.rec.QRLocation, p.QRLocation)
	changed = setField(&e.rec.AgeRange, p.AgeRange) || changed
	changed = setField(&e.rec.Gender, p.Gender) || changed
	changed = setField(&e.rec.BirthProvince, p.BirthProvince) || changed
	changed = setField(&e.rec.Education, p.Education) || changed
	changed = s.stamp(&e.rec, p.Reach) || changed

	s.cache.Set(id, e, cache.DefaultExpiration)
	return e.rec.Clone(), changed, nil
}

// Delete drops the session without treating it as abandoned.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	if x, ok := s.cache.Get(id); ok {
		x.(*entry).deleted = true
	}
	s.mu.Unlock()
	s.cache.Delete(id)
}

// Sweep evicts idle sessions and returns the ones that must be persisted as abandoned.
func (s *Store) Sweep() []models.Record {
	s.cache.DeleteExpired()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.expired
	s.expired = nil
	return out
}

// Len is the number of live sessions, expired ones included until the next Sweep.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

func (s *Store) onEvicted(_ string, v interface{}) {
	e, ok := v.(*entry)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.deleted || e.rec.Completed || !e.rec.Tracked {
		return
	}
	// Landed-only visitors never engaged with the form and stay in progress.
	if e.rec.State() == models.StateLanded {
		return
	}
	e.rec.Status = models.StatusAbandoned
	s.expired = append(s.expired, e.rec.Clone())
}

// stamp records the timestamp of state, never earlier than the latest one already set.
func (s *Store) stamp(r *models.Record, state models.State) bool {
	var slot **time.Time
	switch state {
	case models.StateFormStarted:
		slot = &r.FormStartedAt
	case models.StateStep2:
		slot = &r.Step2At
	case models.StateCompleted:
		slot = &r.CompletedAt
	default:
		return false
	}
	if *slot != nil {
		return false
	}

	at := s.now()
	if latest := latestStamp(r); latest != nil && at.Before(*latest) {
		at = *latest
	}
	*slot = &at

	if state == models.StateCompleted {
		r.Completed = true
		r.Status = models.StatusCompleted
	}
	return true
}

func latestStamp(r *models.Record) *time.Time {
	for _, t := range []*time.Time{r.CompletedAt, r.Step2At, r.FormStartedAt, r.OpenedAt} {
		if t != nil {
			return t
		}
	}
	return nil
}

func setField(dst *string, v string) bool {
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}
