package store

import (
	"fmt"
	"testing"
	"time"

	"playsdb/pkg/domain"
)

func seedAuthor(t *testing.T, m *MemoryStore, id, first, last string) {
	t.Helper()
	err := m.CreateUser(domain.User{
		ID:        id,
		FirstName: first,
		LastName:  last,
		Email:     id + "@example.com",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed author: %v", err)
	}
}

func seedPlay(t *testing.T, m *MemoryStore, p domain.Play) {
	t.Helper()
	if err := m.CreatePlay(p); err != nil {
		t.Fatalf("seed play: %v", err)
	}
}

func TestSearchPlaysFiltersAreANDed(t *testing.T) {
	m := NewMemoryStore()
	seedAuthor(t, m, "a1", "Jane", "Doe")
	seedPlay(t, m, domain.Play{ID: "p1", Title: "Alpha", AuthorID: "a1", Genre: "Comedy", Duration: 90, Acts: 2})
	seedPlay(t, m, domain.Play{ID: "p2", Title: "Beta", AuthorID: "a1", Genre: "Comedy", Duration: 30, Acts: 2})
	seedPlay(t, m, domain.Play{ID: "p3", Title: "Gamma", AuthorID: "a1", Genre: "Drama", Duration: 90, Acts: 2})

	page, err := m.SearchPlays(PlayQuery{Genre: "Comedy", MinDuration: 60})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.TotalResults != 1 || page.Plays[0].ID != "p1" {
		t.Fatalf("expected only p1, got %+v", page)
	}
}

func TestSearchPlaysMatchesAuthorNameTokens(t *testing.T) {
	m := NewMemoryStore()
	seedAuthor(t, m, "a1", "John", "Smith")
	seedAuthor(t, m, "a2", "Mary", "Jones")
	seedPlay(t, m, domain.Play{ID: "p1", Title: "Quiet Winter", AuthorID: "a1", Abstract: "a play"})
	seedPlay(t, m, domain.Play{ID: "p2", Title: "Loud Summer", AuthorID: "a2", Abstract: "another play"})
	seedPlay(t, m, domain.Play{ID: "p3", Title: "Smithereens", AuthorID: "a2", Abstract: "explosive"})

	page, err := m.SearchPlays(PlayQuery{Search: "Smith"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.TotalResults != 2 {
		t.Fatalf("expected 2 matches (author + title), got %d", page.TotalResults)
	}
	// "john smith" as a full-name search should match only a1's play.
	page, err = m.SearchPlays(PlayQuery{Search: "john smith"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	found := false
	for _, p := range page.Plays {
		if p.ID == "p1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("full-name search should match p1, got %+v", page.Plays)
	}
}

func TestSearchPlaysPagination(t *testing.T) {
	m := NewMemoryStore()
	seedAuthor(t, m, "a1", "Jane", "Doe")
	for i := 0; i < 12; i++ {
		seedPlay(t, m, domain.Play{
			ID:       fmt.Sprintf("p%02d", i),
			Title:    fmt.Sprintf("Play %02d", i),
			AuthorID: "a1",
		})
	}

	page, err := m.SearchPlays(PlayQuery{Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.TotalResults != 12 {
		t.Fatalf("totalResults = %d, want 12", page.TotalResults)
	}
	if page.TotalPages != 3 {
		t.Fatalf("totalPages = %d, want 3", page.TotalPages)
	}
	if len(page.Plays) != 5 {
		t.Fatalf("page length = %d, want 5", len(page.Plays))
	}
	// Title-ascending order means page 2 starts at Play 05.
	if page.Plays[0].Title != "Play 05" {
		t.Fatalf("page 2 first title = %q, want Play 05", page.Plays[0].Title)
	}

	// Page past the end is empty but keeps totals.
	page, err = m.SearchPlays(PlayQuery{Page: 9, Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Plays) != 0 || page.TotalResults != 12 {
		t.Fatalf("expected empty page with totals, got %+v", page)
	}
}

func TestGetUserByResetTokenHonorsExpiry(t *testing.T) {
	m := NewMemoryStore()
	now := time.Now().UTC()
	err := m.CreateUser(domain.User{
		ID:           "u1",
		Email:        "u1@example.com",
		ResetToken:   "tok",
		ResetExpires: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, ok, _ := m.GetUserByResetToken("tok", now); !ok {
		t.Fatalf("unexpired token should resolve")
	}
	if _, ok, _ := m.GetUserByResetToken("tok", now.Add(2*time.Hour)); ok {
		t.Fatalf("expired token must not resolve")
	}
	if _, ok, _ := m.GetUserByResetToken("", now); ok {
		t.Fatalf("empty token must not resolve")
	}
}

func TestUpdateUserReindexesEmail(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateUser(domain.User{ID: "u1", Email: "old@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, _, _ := m.GetUserByID("u1")
	u.Email = "new@example.com"
	if err := m.UpdateUser(u); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok, _ := m.GetUserByEmail("old@example.com"); ok {
		t.Fatalf("old email should be unindexed")
	}
	if _, ok, _ := m.GetUserByEmail("new@example.com"); !ok {
		t.Fatalf("new email should resolve")
	}
}
