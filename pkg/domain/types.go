package domain

import "time"

// Account roles. The numeric values are part of the API contract and are
// stored as-is on the user record.
const (
	RoleEducator           = 0
	RolePlaywright         = 1
	RoleUnlockedEducator   = 2
	RoleUnlockedPlaywright = 3
	RoleAdmin              = 4
)

// Contact preference values.
const (
	ContactNo  = 0
	ContactYes = 1
)

// ValidRole reports whether n is a known account role.
func ValidRole(n int) bool {
	return n >= RoleEducator && n <= RoleAdmin
}

// ValidContact reports whether n is a legal contact flag.
func ValidContact(n int) bool {
	return n == ContactNo || n == ContactYes
}

// Profile holds the optional free-form profile attached to a user.
// All fields are plain text except ProfilePicture, which carries an
// inline data URI.
type Profile struct {
	ProfilePicture string `json:"profilePicture"`
	Description    string `json:"description"`
	Biography      string `json:"biography"`
	CompanyName    string `json:"companyName"`
	Street         string `json:"street"`
	StateCity      string `json:"stateCity"`
	Country        string `json:"country"`
	Website        string `json:"website"`
}

// ContactEntry records one outbound contact message for cooldown tracking.
type ContactEntry struct {
	RecipientID string    `json:"recipientId"`
	SentAt      time.Time `json:"sentAt"`
}

// User is a registered account.
type User struct {
	ID             string         `json:"id"`
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	PasswordHash   string         `json:"-"`
	Account        int            `json:"account"`
	Contact        int            `json:"contact"`
	SchoolName     string         `json:"schoolName"`
	Profile        Profile        `json:"profile"`
	ResetToken     string         `json:"-"`
	ResetExpires   time.Time      `json:"-"`
	ContactHistory []ContactEntry `json:"-"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// FullName returns "First Last" for display, or "Anonymous" when empty.
func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return "Anonymous"
	}
	return name
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Account == RoleAdmin
}

// PlayFile is a document attachment stored inline on the play record.
// Data holds the base64-encoded file contents.
type PlayFile struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
}

// Play is a submitted play/script record.
type Play struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	AuthorID         string    `json:"authorId"`
	PublicationDate  time.Time `json:"publicationDate"`
	SubmissionDate   time.Time `json:"submissionDate"`
	Acts             int       `json:"acts"`
	Duration         int       `json:"duration"`
	Total            int       `json:"total"`
	Males            int       `json:"males"`
	Females          int       `json:"females"`
	Funding          string    `json:"funding"`
	OrganizationType string    `json:"organizationType"`
	Genre            string    `json:"genre"`
	Abstract         string    `json:"abstract"`
	CoverImage       string    `json:"coverImage"`
	PlayFile         *PlayFile `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HasSample reports whether a document attachment is present.
func (p Play) HasSample() bool {
	return p.PlayFile != nil && p.PlayFile.Data != ""
}
