package store

import (
	"errors"
	"time"

	"playsdb/pkg/domain"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// PlayQuery captures the filters, search term, and pagination of a play
// listing request. Zero values mean "not set".
type PlayQuery struct {
	Search           string
	Genre            string
	Funding          string
	OrganizationType string
	PubDateFrom      time.Time
	PubDateTo        time.Time
	SubDateFrom      time.Time
	SubDateTo        time.Time
	MinDuration      int
	MaxDuration      int
	Males            int
	Females          int
	Acts             int
	Page             int
	Limit            int
}

// Normalize clamps pagination to sane values.
func (q *PlayQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
}

// PlayPage is one page of play search results.
type PlayPage struct {
	Plays        []domain.Play
	TotalResults int
	TotalPages   int
	Page         int
}

// Store is the persistence boundary for users and plays.
type Store interface {
	CreateUser(u domain.User) error
	UpdateUser(u domain.User) error
	DeleteUser(id string) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByResetToken(token string, now time.Time) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)
	ListUsers() ([]domain.User, error)

	CreatePlay(p domain.Play) error
	UpdatePlay(p domain.Play) error
	DeletePlay(id string) error
	DeletePlaysByAuthor(authorID string) error
	GetPlay(id string) (domain.Play, bool, error)
	SearchPlays(q PlayQuery) (PlayPage, error)
}
