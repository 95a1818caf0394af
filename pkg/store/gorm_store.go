package store

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"playsdb/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &PlayModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a new user record.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Create(&model).Error
}

// UpdateUser saves the full user record.
func (s *GormStore) UpdateUser(u domain.User) error {
	model := userToModel(u)
	res := s.db.Model(&UserModel{}).Where("id = ?", u.ID).Select("*").Omit("id", "created_at").Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user record.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Delete(&UserModel{}, "id = ?", id).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByResetToken returns the user holding an unexpired reset token.
func (s *GormStore) GetUserByResetToken(token string, now time.Time) (domain.User, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, false, nil
	}
	var model UserModel
	if err := s.db.Where("reset_token = ? AND reset_expires > ?", token, now.UTC()).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// CreatePlay inserts a new play record.
func (s *GormStore) CreatePlay(p domain.Play) error {
	model := playToModel(p)
	return s.db.Create(&model).Error
}

// UpdatePlay saves the full play record.
func (s *GormStore) UpdatePlay(p domain.Play) error {
	model := playToModel(p)
	res := s.db.Model(&PlayModel{}).Where("id = ?", p.ID).Select("*").Omit("id", "created_at").Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlay removes a play record.
func (s *GormStore) DeletePlay(id string) error {
	return s.db.Delete(&PlayModel{}, "id = ?", id).Error
}

// DeletePlaysByAuthor removes all plays owned by the author.
func (s *GormStore) DeletePlaysByAuthor(authorID string) error {
	return s.db.Delete(&PlayModel{}, "author_id = ?", authorID).Error
}

// GetPlay retrieves a play.
func (s *GormStore) GetPlay(id string) (domain.Play, bool, error) {
	var model PlayModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Play{}, false, nil
		}
		return domain.Play{}, false, err
	}
	return playFromModel(model), true, nil
}

// SearchPlays applies filters, free-text search, and pagination.
// Results are ordered by title ascending.
func (s *GormStore) SearchPlays(q PlayQuery) (PlayPage, error) {
	q.Normalize()
	tx := s.db.Model(&PlayModel{})
	if q.Genre != "" {
		tx = tx.Where("genre = ?", q.Genre)
	}
	if q.Funding != "" {
		tx = tx.Where("funding = ?", q.Funding)
	}
	if q.OrganizationType != "" {
		tx = tx.Where("organization_type = ?", q.OrganizationType)
	}
	if !q.PubDateFrom.IsZero() {
		tx = tx.Where("publication_date >= ?", q.PubDateFrom)
	}
	if !q.PubDateTo.IsZero() {
		tx = tx.Where("publication_date <= ?", q.PubDateTo)
	}
	if !q.SubDateFrom.IsZero() {
		tx = tx.Where("submission_date >= ?", q.SubDateFrom)
	}
	if !q.SubDateTo.IsZero() {
		tx = tx.Where("submission_date <= ?", q.SubDateTo)
	}
	if q.MinDuration > 0 {
		tx = tx.Where("duration >= ?", q.MinDuration)
	}
	if q.MaxDuration > 0 {
		tx = tx.Where("duration <= ?", q.MaxDuration)
	}
	if q.Males > 0 {
		tx = tx.Where("males >= ?", q.Males)
	}
	if q.Females > 0 {
		tx = tx.Where("females >= ?", q.Females)
	}
	if q.Acts > 0 {
		tx = tx.Where("acts = ?", q.Acts)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		authorIDs, err := s.searchAuthorIDs(search)
		if err != nil {
			return PlayPage{}, err
		}
		term := "%" + strings.ToLower(search) + "%"
		if len(authorIDs) > 0 {
			tx = tx.Where("LOWER(title) LIKE ? OR LOWER(abstract) LIKE ? OR author_id IN ?", term, term, authorIDs)
		} else {
			tx = tx.Where("LOWER(title) LIKE ? OR LOWER(abstract) LIKE ?", term, term)
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return PlayPage{}, err
	}
	var models []PlayModel
	if err := tx.Order("title ASC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&models).Error; err != nil {
		return PlayPage{}, err
	}
	plays := make([]domain.Play, 0, len(models))
	for _, m := range models {
		plays = append(plays, playFromModel(m))
	}
	return PlayPage{
		Plays:        plays,
		TotalResults: int(total),
		TotalPages:   int(math.Ceil(float64(total) / float64(q.Limit))),
		Page:         q.Page,
	}, nil
}

// searchAuthorIDs finds users whose first name, last name, or full name
// matches any whitespace token of the search term.
func (s *GormStore) searchAuthorIDs(search string) ([]string, error) {
	tokens := strings.Fields(strings.ToLower(search))
	if len(tokens) == 0 {
		return nil, nil
	}
	tx := s.db.Model(&UserModel{})
	full := "%" + strings.ToLower(search) + "%"
	cond := s.db.Where("LOWER(first_name || ' ' || last_name) LIKE ?", full)
	for _, tok := range tokens {
		like := "%" + tok + "%"
		cond = cond.Or("LOWER(first_name) LIKE ?", like).Or("LOWER(last_name) LIKE ?", like)
	}
	var ids []string
	if err := tx.Where(cond).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func userToModel(u domain.User) UserModel {
	profile, _ := json.Marshal(u.Profile)
	history, _ := json.Marshal(u.ContactHistory)
	return UserModel{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		Phone:          u.Phone,
		PasswordHash:   u.PasswordHash,
		Account:        u.Account,
		Contact:        u.Contact,
		SchoolName:     u.SchoolName,
		Profile:        profile,
		ResetToken:     u.ResetToken,
		ResetExpires:   u.ResetExpires,
		ContactHistory: history,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	var profile domain.Profile
	if len(m.Profile) > 0 {
		_ = json.Unmarshal(m.Profile, &profile)
	}
	var history []domain.ContactEntry
	if len(m.ContactHistory) > 0 {
		_ = json.Unmarshal(m.ContactHistory, &history)
	}
	return domain.User{
		ID:             m.ID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Email:          m.Email,
		Phone:          m.Phone,
		PasswordHash:   m.PasswordHash,
		Account:        m.Account,
		Contact:        m.Contact,
		SchoolName:     m.SchoolName,
		Profile:        profile,
		ResetToken:     m.ResetToken,
		ResetExpires:   m.ResetExpires,
		ContactHistory: history,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func playToModel(p domain.Play) PlayModel {
	var file []byte
	if p.PlayFile != nil {
		file, _ = json.Marshal(p.PlayFile)
	}
	return PlayModel{
		ID:               p.ID,
		Title:            p.Title,
		AuthorID:         p.AuthorID,
		PublicationDate:  p.PublicationDate,
		SubmissionDate:   p.SubmissionDate,
		Acts:             p.Acts,
		Duration:         p.Duration,
		Total:            p.Total,
		Males:            p.Males,
		Females:          p.Females,
		Funding:          p.Funding,
		OrganizationType: p.OrganizationType,
		Genre:            p.Genre,
		Abstract:         p.Abstract,
		CoverImage:       p.CoverImage,
		PlayFile:         file,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func playFromModel(m PlayModel) domain.Play {
	var file *domain.PlayFile
	if len(m.PlayFile) > 0 {
		var decoded domain.PlayFile
		if err := json.Unmarshal(m.PlayFile, &decoded); err == nil && decoded.Data != "" {
			file = &decoded
		}
	}
	return domain.Play{
		ID:               m.ID,
		Title:            m.Title,
		AuthorID:         m.AuthorID,
		PublicationDate:  m.PublicationDate,
		SubmissionDate:   m.SubmissionDate,
		Acts:             m.Acts,
		Duration:         m.Duration,
		Total:            m.Total,
		Males:            m.Males,
		Females:          m.Females,
		Funding:          m.Funding,
		OrganizationType: m.OrganizationType,
		Genre:            m.Genre,
		Abstract:         m.Abstract,
		CoverImage:       m.CoverImage,
		PlayFile:         file,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
