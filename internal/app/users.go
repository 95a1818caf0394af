package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"playsdb/pkg/auth"
	"playsdb/pkg/domain"
	"playsdb/pkg/mail"
)

const resetTokenTTL = time.Hour

// Field length limits enforced on profile updates.
const (
	maxNameLen        = 20
	maxDescriptionLen = 450
	maxBiographyLen   = 2000
	maxSchoolLen      = 100
	maxCompanyLen     = 100
	maxStreetLen      = 100
	maxStateCityLen   = 100
	maxCountryLen     = 50
)

// SignupInput carries a registration request.
type SignupInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Password   string
	Account    int
	Contact    int
	SchoolName string
}

// Signup registers a new account and queues the welcome and admin-review
// notifications. Self-registration is limited to the base educator and
// playwright roles; unlocked tiers and admin are granted by an admin later.
func (a *App) Signup(in SignupInput) (domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.SchoolName = strings.TrimSpace(in.SchoolName)

	switch {
	case in.FirstName == "":
		return domain.User{}, validationf("First name is required")
	case in.LastName == "":
		return domain.User{}, validationf("Last name is required")
	case in.Email == "":
		return domain.User{}, validationf("Email is required")
	case in.Phone == "":
		return domain.User{}, validationf("Phone is required")
	}
	if in.Account != domain.RoleEducator && in.Account != domain.RolePlaywright {
		return domain.User{}, validationf("Invalid account type")
	}
	if !domain.ValidContact(in.Contact) {
		return domain.User{}, validationf("Invalid contact value")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, &ValidationError{Message: err.Error()}
	}

	exists, err := a.store.HasUserEmail(in.Email)
	if err != nil {
		return domain.User{}, a.wrapStoreErr("check email", err)
	}
	if exists {
		return domain.User{}, ErrEmailInUse
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Account:      in.Account,
		Contact:      in.Contact,
		SchoolName:   in.SchoolName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		return domain.User{}, a.wrapStoreErr("create user", err)
	}
	a.sendSignupMail(user)
	return user, nil
}

// Login verifies credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", a.wrapStoreErr("fetch user", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	session, err := a.tokens.IssueSession(user.ID, user.Account)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, session, nil
}

// GetUser returns a user by ID.
func (a *App) GetUser(id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, a.wrapStoreErr("fetch user", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// ForgotPassword issues a reset token and queues the reset mail. Unknown
// emails are ignored so the endpoint stays enumeration-safe.
func (a *App) ForgotPassword(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return validationf("Email is required")
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return a.wrapStoreErr("fetch user", err)
	}
	if !ok {
		return nil
	}
	user.ResetToken = randomToken()
	user.ResetExpires = a.now().Add(resetTokenTTL)
	user.UpdatedAt = a.now()
	if err := a.store.UpdateUser(user); err != nil {
		return a.wrapStoreErr("save reset token", err)
	}
	link := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(a.clientURL, "/"), user.ResetToken)
	a.mailer.Enqueue(mail.Message{
		To:      user.Email,
		Subject: "Password Reset Request",
		Text:    "Click here to reset your password: " + link,
		HTML:    fmt.Sprintf(`<p>Click <a href="%s">here</a> to reset your password.</p>`, link),
	})
	return nil
}

// ResetPassword consumes a reset token, stores the new password, and issues
// a fresh session so the client is logged in immediately.
func (a *App) ResetPassword(resetToken, newPassword string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByResetToken(resetToken, a.now())
	if err != nil {
		return domain.User{}, "", a.wrapStoreErr("fetch user", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidResetToken
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return domain.User{}, "", &ValidationError{Message: err.Error()}
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	user.ResetExpires = time.Time{}
	user.UpdatedAt = a.now()
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, "", a.wrapStoreErr("save user", err)
	}
	session, err := a.tokens.IssueSession(user.ID, user.Account)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, session, nil
}

// ProfilePatch updates a subset of profile sub-fields. Nil fields are left
// untouched; the stored profile picture survives unless a new image comes in
// through UserPatch.ProfilePicture.
type ProfilePatch struct {
	Description *string
	Biography   *string
	CompanyName *string
	Street      *string
	StateCity   *string
	Country     *string
	Website     *string
}

// UserPatch updates a subset of account fields. Nil means "leave unchanged".
type UserPatch struct {
	FirstName      *string
	LastName       *string
	Phone          *string
	Account        *int
	Contact        *int
	SchoolName     *string
	Profile        *ProfilePatch
	ProfilePicture *string // data URI produced by EncodeCoverImage-style encoding
}

// UpdateProfile applies a partial update to the user's own record. All
// validation happens before any field is assigned, so a rejected patch
// leaves the record unchanged.
func (a *App) UpdateProfile(userID string, patch UserPatch) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, a.wrapStoreErr("fetch user", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if err := validateUserPatch(patch); err != nil {
		return domain.User{}, err
	}
	applyUserPatch(&user, patch)
	user.UpdatedAt = a.now()
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, a.wrapStoreErr("save user", err)
	}
	return user, nil
}

func validateUserPatch(patch UserPatch) error {
	type lengthCheck struct {
		value *string
		label string
		max   int
	}
	checks := []lengthCheck{
		{patch.FirstName, "First name", maxNameLen},
		{patch.LastName, "Last name", maxNameLen},
		{patch.SchoolName, "School name", maxSchoolLen},
	}
	if patch.Profile != nil {
		checks = append(checks,
			lengthCheck{patch.Profile.Description, "Description", maxDescriptionLen},
			lengthCheck{patch.Profile.Biography, "Biography", maxBiographyLen},
			lengthCheck{patch.Profile.CompanyName, "Company name", maxCompanyLen},
			lengthCheck{patch.Profile.Street, "Street", maxStreetLen},
			lengthCheck{patch.Profile.StateCity, "State & City", maxStateCityLen},
			lengthCheck{patch.Profile.Country, "Country", maxCountryLen},
		)
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(*c.value)
		if trimmed == "" {
			return validationf("%s cannot be blank", c.label)
		}
		if len(trimmed) > c.max {
			return validationf("%s too long", c.label)
		}
	}
	if patch.Phone != nil && strings.TrimSpace(*patch.Phone) == "" {
		return validationf("Phone cannot be blank")
	}
	if patch.Account != nil && !domain.ValidRole(*patch.Account) {
		return validationf("Invalid account type")
	}
	if patch.Contact != nil && !domain.ValidContact(*patch.Contact) {
		return validationf("Invalid contact value")
	}
	return nil
}

func applyUserPatch(user *domain.User, patch UserPatch) {
	setTrimmed := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setTrimmed(&user.FirstName, patch.FirstName)
	setTrimmed(&user.LastName, patch.LastName)
	setTrimmed(&user.Phone, patch.Phone)
	setTrimmed(&user.SchoolName, patch.SchoolName)
	if patch.Account != nil {
		user.Account = *patch.Account
	}
	if patch.Contact != nil {
		user.Contact = *patch.Contact
	}
	if patch.Profile != nil {
		setTrimmed(&user.Profile.Description, patch.Profile.Description)
		setTrimmed(&user.Profile.Biography, patch.Profile.Biography)
		setTrimmed(&user.Profile.CompanyName, patch.Profile.CompanyName)
		setTrimmed(&user.Profile.Street, patch.Profile.Street)
		setTrimmed(&user.Profile.StateCity, patch.Profile.StateCity)
		setTrimmed(&user.Profile.Country, patch.Profile.Country)
		setTrimmed(&user.Profile.Website, patch.Profile.Website)
	}
	if patch.ProfilePicture != nil {
		user.Profile.ProfilePicture = *patch.ProfilePicture
	}
}

// AdminListUsers returns every account for the admin console.
func (a *App) AdminListUsers() ([]domain.User, error) {
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, a.wrapStoreErr("list users", err)
	}
	return users, nil
}

// AdminSetAccount changes a user's role.
func (a *App) AdminSetAccount(userID string, account int) (domain.User, error) {
	if !domain.ValidRole(account) {
		return domain.User{}, validationf("Invalid account level")
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, a.wrapStoreErr("fetch user", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	user.Account = account
	user.UpdatedAt = a.now()
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, a.wrapStoreErr("save user", err)
	}
	return user, nil
}

// AdminDeleteUser removes an account and its plays (moderation).
func (a *App) AdminDeleteUser(userID string) error {
	_, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return a.wrapStoreErr("fetch user", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := a.store.DeletePlaysByAuthor(userID); err != nil {
		return a.wrapStoreErr("delete plays", err)
	}
	if err := a.store.DeleteUser(userID); err != nil {
		return a.wrapStoreErr("delete user", err)
	}
	return nil
}

func (a *App) sendSignupMail(user domain.User) {
	accountType := "Educator"
	if user.Account == domain.RolePlaywright {
		accountType = "Playwright"
	}
	if a.supportEmail != "" {
		a.mailer.Enqueue(mail.Message{
			To:      a.supportEmail,
			Subject: fmt.Sprintf("New %s Account Created: %s", a.siteName, user.FullName()),
			Text: fmt.Sprintf(
				"A new %s account has been created.\n\nEmail: %s\nName: %s\nPhone Number: %s\nAccount Type: %s\nSchool: %s\n\nPlease review and verify the account.\n",
				a.siteName, user.Email, user.FullName(), user.Phone, accountType, orNA(user.SchoolName)),
		})
	}
	a.mailer.Enqueue(mail.Message{
		To:      user.Email,
		Subject: "Welcome to " + a.siteName + "!",
		Text: fmt.Sprintf(
			"Hello %s,\n\nYour account has been successfully created on %s! Please understand that our verification process may take up to 24 hours. We appreciate your patience — thank you!\n\n– The %s Team\n",
			user.FullName(), a.siteName, a.siteName),
	})
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
