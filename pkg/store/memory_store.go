package store

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"playsdb/pkg/domain"
)

// MemoryStore keeps records in-process. It backs the test suite and mirrors
// the query semantics of the Postgres store.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	email map[string]string // lowercased email -> user ID
	plays map[string]domain.Play
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		email: make(map[string]string),
		plays: make(map[string]domain.Play),
	}
}

func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if !strings.EqualFold(prev.Email, u.Email) {
		delete(m.email, strings.ToLower(prev.Email))
		m.email[strings.ToLower(u.Email)] = u.ID
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.email, strings.ToLower(u.Email))
		delete(m.users, id)
	}
	return nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByResetToken(token string, now time.Time) (domain.User, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ResetToken == token && u.ResetExpires.After(now) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[strings.ToLower(strings.TrimSpace(email))]
	return ok, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) CreatePlay(p domain.Play) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays[p.ID] = p
	return nil
}

func (m *MemoryStore) UpdatePlay(p domain.Play) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plays[p.ID]; !ok {
		return ErrNotFound
	}
	m.plays[p.ID] = p
	return nil
}

func (m *MemoryStore) DeletePlay(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plays, id)
	return nil
}

func (m *MemoryStore) DeletePlaysByAuthor(authorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.plays {
		if p.AuthorID == authorID {
			delete(m.plays, id)
		}
	}
	return nil
}

func (m *MemoryStore) GetPlay(id string) (domain.Play, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plays[id]
	return p, ok, nil
}

func (m *MemoryStore) SearchPlays(q PlayQuery) (PlayPage, error) {
	q.Normalize()
	m.mu.RLock()
	matched := make([]domain.Play, 0, len(m.plays))
	for _, p := range m.plays {
		if m.matches(p, q) {
			matched = append(matched, p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := strings.ToLower(matched[i].Title), strings.ToLower(matched[j].Title)
		if a != b {
			return a < b
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return PlayPage{
		Plays:        matched[start:end],
		TotalResults: total,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.Limit))),
		Page:         q.Page,
	}, nil
}

func (m *MemoryStore) matches(p domain.Play, q PlayQuery) bool {
	if q.Genre != "" && p.Genre != q.Genre {
		return false
	}
	if q.Funding != "" && p.Funding != q.Funding {
		return false
	}
	if q.OrganizationType != "" && p.OrganizationType != q.OrganizationType {
		return false
	}
	if !q.PubDateFrom.IsZero() && p.PublicationDate.Before(q.PubDateFrom) {
		return false
	}
	if !q.PubDateTo.IsZero() && p.PublicationDate.After(q.PubDateTo) {
		return false
	}
	if !q.SubDateFrom.IsZero() && p.SubmissionDate.Before(q.SubDateFrom) {
		return false
	}
	if !q.SubDateTo.IsZero() && p.SubmissionDate.After(q.SubDateTo) {
		return false
	}
	if q.MinDuration > 0 && p.Duration < q.MinDuration {
		return false
	}
	if q.MaxDuration > 0 && p.Duration > q.MaxDuration {
		return false
	}
	if q.Males > 0 && p.Males < q.Males {
		return false
	}
	if q.Females > 0 && p.Females < q.Females {
		return false
	}
	if q.Acts > 0 && p.Acts != q.Acts {
		return false
	}
	search := strings.TrimSpace(q.Search)
	if search == "" {
		return true
	}
	term := strings.ToLower(search)
	if strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Abstract), term) {
		return true
	}
	author, ok := m.users[p.AuthorID]
	if !ok {
		return false
	}
	return authorMatches(author, search)
}

// authorMatches mirrors the SQL author search: any whitespace token of the
// term matching first or last name, or the full term matching "First Last".
func authorMatches(u domain.User, search string) bool {
	first := strings.ToLower(u.FirstName)
	last := strings.ToLower(u.LastName)
	full := first + " " + last
	if strings.Contains(full, strings.ToLower(search)) {
		return true
	}
	for _, tok := range strings.Fields(strings.ToLower(search)) {
		if strings.Contains(first, tok) || strings.Contains(last, tok) {
			return true
		}
	}
	return false
}
