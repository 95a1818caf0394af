package app

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"playsdb/pkg/domain"
	"playsdb/pkg/store"
)

// Attachment size ceilings, applied to the decoded bytes.
const (
	maxCoverImageBytes = 2 << 20  // 2 MiB
	maxScriptBytes     = 10 << 20 // 10 MiB
)

var coverImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

var scriptTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Upload is a file received from the client, base64-encoded.
type Upload struct {
	Filename string
	MimeType string
	Data     string
}

// EncodeCoverImage validates an image upload and returns it as an inline
// data URI suitable for storing on the play record.
func EncodeCoverImage(up Upload) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(up.MimeType))
	if !coverImageTypes[mime] {
		return "", validationf("Cover image must be a JPEG or PNG file")
	}
	if err := checkBase64Size(up.Data, maxCoverImageBytes, "Cover image"); err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, up.Data), nil
}

// EncodeScript validates a script upload and returns the inline attachment
// to store alongside the play.
func EncodeScript(up Upload) (*domain.PlayFile, error) {
	mime := strings.ToLower(strings.TrimSpace(up.MimeType))
	if !scriptTypes[mime] {
		return nil, validationf("Play sample must be a PDF or DOCX file")
	}
	if err := checkBase64Size(up.Data, maxScriptBytes, "Play sample"); err != nil {
		return nil, err
	}
	filename := strings.TrimSpace(up.Filename)
	if filename == "" {
		filename = "sample"
	}
	return &domain.PlayFile{
		Filename: filename,
		MimeType: mime,
		Data:     up.Data,
	}, nil
}

func checkBase64Size(data string, limit int64, label string) error {
	data = strings.TrimSpace(data)
	if data == "" {
		return validationf("%s is empty", label)
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return validationf("%s is not valid base64", label)
	}
	decoded := base64.StdEncoding.DecodedLen(len(data))
	if int64(decoded) > limit {
		return validationf("%s exceeds the %d MB size limit", label, limit>>20)
	}
	return nil
}

// PlayInput carries a play submission.
type PlayInput struct {
	Title            string
	PublicationDate  time.Time
	Acts             int
	Duration         int
	Total            int
	Males            int
	Females          int
	Funding          string
	OrganizationType string
	Genre            string
	Abstract         string
	CoverImage       *Upload
	Script           *Upload
}

// PlayView is a play enriched with its author's display name for listings.
type PlayView struct {
	domain.Play
	Author    string `json:"author"`
	HasSample bool   `json:"hasSample"`
}

// PlaySearchResult is one page of enriched search results.
type PlaySearchResult struct {
	Plays        []PlayView `json:"plays"`
	TotalResults int        `json:"totalResults"`
	TotalPages   int        `json:"totalPages"`
	CurrentPage  int        `json:"currentPage"`
	HasNextPage  bool       `json:"hasNextPage"`
	HasPrevPage  bool       `json:"hasPrevPage"`
}

// CreatePlay submits a new play. Only unlocked playwrights and admins may
// submit.
func (a *App) CreatePlay(actor domain.User, in PlayInput) (domain.Play, error) {
	if actor.Account != domain.RoleUnlockedPlaywright && actor.Account != domain.RoleAdmin {
		return domain.Play{}, ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.Play{}, validationf("Title is required")
	}
	if err := validatePlayNumbers(in.Acts, in.Duration, in.Total, in.Males, in.Females); err != nil {
		return domain.Play{}, err
	}
	now := a.now()
	play := domain.Play{
		ID:               uuid.NewString(),
		Title:            in.Title,
		AuthorID:         actor.ID,
		PublicationDate:  in.PublicationDate,
		SubmissionDate:   now,
		Acts:             in.Acts,
		Duration:         in.Duration,
		Total:            in.Total,
		Males:            in.Males,
		Females:          in.Females,
		Funding:          strings.TrimSpace(in.Funding),
		OrganizationType: strings.TrimSpace(in.OrganizationType),
		Genre:            strings.TrimSpace(in.Genre),
		Abstract:         strings.TrimSpace(in.Abstract),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.CoverImage != nil {
		uri, err := EncodeCoverImage(*in.CoverImage)
		if err != nil {
			return domain.Play{}, err
		}
		play.CoverImage = uri
	}
	if in.Script != nil {
		file, err := EncodeScript(*in.Script)
		if err != nil {
			return domain.Play{}, err
		}
		play.PlayFile = file
	}
	if err := a.store.CreatePlay(play); err != nil {
		return domain.Play{}, a.wrapStoreErr("create play", err)
	}
	return play, nil
}

func validatePlayNumbers(acts, duration, total, males, females int) error {
	if acts < 0 || duration < 0 || total < 0 || males < 0 || females < 0 {
		return validationf("Numeric fields cannot be negative")
	}
	return nil
}

// GetPlay returns one play with its author name resolved.
func (a *App) GetPlay(id string) (PlayView, error) {
	play, ok, err := a.store.GetPlay(id)
	if err != nil {
		return PlayView{}, a.wrapStoreErr("fetch play", err)
	}
	if !ok {
		return PlayView{}, ErrNotFound
	}
	return a.toView(play), nil
}

// GetSample returns the decoded script attachment for download.
func (a *App) GetSample(id string) (domain.PlayFile, []byte, error) {
	play, ok, err := a.store.GetPlay(id)
	if err != nil {
		return domain.PlayFile{}, nil, a.wrapStoreErr("fetch play", err)
	}
	if !ok {
		return domain.PlayFile{}, nil, ErrNotFound
	}
	if !play.HasSample() {
		return domain.PlayFile{}, nil, ErrNoSample
	}
	raw, err := base64.StdEncoding.DecodeString(play.PlayFile.Data)
	if err != nil {
		return domain.PlayFile{}, nil, fmt.Errorf("decode sample: %w", err)
	}
	return *play.PlayFile, raw, nil
}

// PlayPatch updates a subset of play fields. Nil means "leave unchanged".
type PlayPatch struct {
	Title            *string
	PublicationDate  *time.Time
	Acts             *int
	Duration         *int
	Total            *int
	Males            *int
	Females          *int
	Funding          *string
	OrganizationType *string
	Genre            *string
	Abstract         *string
	CoverImage       *Upload
	Script           *Upload
}

// UpdatePlay applies a partial update. The actor must own the play or be an
// admin. Scoped edit tokens are verified by the HTTP layer, which resolves
// them to the same actor before calling here.
func (a *App) UpdatePlay(actor domain.User, playID string, patch PlayPatch) (domain.Play, error) {
	play, ok, err := a.store.GetPlay(playID)
	if err != nil {
		return domain.Play{}, a.wrapStoreErr("fetch play", err)
	}
	if !ok {
		return domain.Play{}, ErrNotFound
	}
	if play.AuthorID != actor.ID && !actor.IsAdmin() {
		return domain.Play{}, ErrForbidden
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.Play{}, validationf("Title cannot be blank")
		}
		play.Title = title
	}
	if patch.PublicationDate != nil {
		play.PublicationDate = *patch.PublicationDate
	}
	setInt := func(dst *int, src *int) error {
		if src == nil {
			return nil
		}
		if *src < 0 {
			return validationf("Numeric fields cannot be negative")
		}
		*dst = *src
		return nil
	}
	for _, pair := range []struct {
		dst *int
		src *int
	}{
		{&play.Acts, patch.Acts},
		{&play.Duration, patch.Duration},
		{&play.Total, patch.Total},
		{&play.Males, patch.Males},
		{&play.Females, patch.Females},
	} {
		if err := setInt(pair.dst, pair.src); err != nil {
			return domain.Play{}, err
		}
	}
	setTrimmed := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setTrimmed(&play.Funding, patch.Funding)
	setTrimmed(&play.OrganizationType, patch.OrganizationType)
	setTrimmed(&play.Genre, patch.Genre)
	setTrimmed(&play.Abstract, patch.Abstract)
	if patch.CoverImage != nil {
		uri, err := EncodeCoverImage(*patch.CoverImage)
		if err != nil {
			return domain.Play{}, err
		}
		play.CoverImage = uri
	}
	if patch.Script != nil {
		file, err := EncodeScript(*patch.Script)
		if err != nil {
			return domain.Play{}, err
		}
		play.PlayFile = file
	}
	play.UpdatedAt = a.now()
	if err := a.store.UpdatePlay(play); err != nil {
		return domain.Play{}, a.wrapStoreErr("save play", err)
	}
	return play, nil
}

// DeletePlay removes a play. Owner or admin only.
func (a *App) DeletePlay(actor domain.User, playID string) error {
	play, ok, err := a.store.GetPlay(playID)
	if err != nil {
		return a.wrapStoreErr("fetch play", err)
	}
	if !ok {
		return ErrNotFound
	}
	if play.AuthorID != actor.ID && !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := a.store.DeletePlay(playID); err != nil {
		return a.wrapStoreErr("delete play", err)
	}
	return nil
}

// IssueEditToken mints a short-lived token scoped to one play so the edit
// form can submit without re-authenticating. Owner or admin only.
func (a *App) IssueEditToken(actor domain.User, playID string) (string, error) {
	play, ok, err := a.store.GetPlay(playID)
	if err != nil {
		return "", a.wrapStoreErr("fetch play", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	if play.AuthorID != actor.ID && !actor.IsAdmin() {
		return "", ErrForbidden
	}
	tok, err := a.tokens.IssueEditToken(actor.ID, actor.Account, playID)
	if err != nil {
		return "", fmt.Errorf("issue edit token: %w", err)
	}
	return tok, nil
}

// SearchPlays runs a filtered, paginated search and resolves author names.
func (a *App) SearchPlays(q store.PlayQuery) (PlaySearchResult, error) {
	q.Normalize()
	page, err := a.store.SearchPlays(q)
	if err != nil {
		return PlaySearchResult{}, a.wrapStoreErr("search plays", err)
	}
	views := make([]PlayView, 0, len(page.Plays))
	names := map[string]string{}
	for _, play := range page.Plays {
		name, ok := names[play.AuthorID]
		if !ok {
			name = a.authorName(play.AuthorID)
			names[play.AuthorID] = name
		}
		views = append(views, PlayView{
			Play:      play,
			Author:    name,
			HasSample: play.HasSample(),
		})
	}
	return PlaySearchResult{
		Plays:        views,
		TotalResults: page.TotalResults,
		TotalPages:   page.TotalPages,
		CurrentPage:  page.Page,
		HasNextPage:  page.Page < page.TotalPages,
		HasPrevPage:  page.Page > 1,
	}, nil
}

func (a *App) toView(play domain.Play) PlayView {
	return PlayView{
		Play:      play,
		Author:    a.authorName(play.AuthorID),
		HasSample: play.HasSample(),
	}
}

func (a *App) authorName(authorID string) string {
	author, ok, err := a.store.GetUserByID(authorID)
	if err != nil || !ok {
		return "Anonymous"
	}
	return author.FullName()
}
