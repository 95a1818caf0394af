package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"playsdb/internal/app"
	"playsdb/pkg/domain"
	"playsdb/pkg/store"
)

const maxPlayFormBytes = 16 << 20

type playCreateRequest struct {
	Title            string      `json:"title"`
	PublicationDate  string      `json:"publicationDate"`
	Acts             int         `json:"acts"`
	Duration         int         `json:"duration"`
	Total            int         `json:"total"`
	Males            int         `json:"males"`
	Females          int         `json:"females"`
	FundingType      string      `json:"fundingType"`
	OrganizationType string      `json:"organizationType"`
	Genre            string      `json:"genre"`
	Abstract         string      `json:"abstract"`
	CoverImage       *app.Upload `json:"coverImage"`
	PlayFile         *app.Upload `json:"playFile"`
}

type playUpdateRequest struct {
	Title            *string     `json:"title"`
	PublicationDate  *string     `json:"publicationDate"`
	Acts             *int        `json:"acts"`
	Duration         *int        `json:"duration"`
	Total            *int        `json:"total"`
	Males            *int        `json:"males"`
	Females          *int        `json:"females"`
	FundingType      *string     `json:"fundingType"`
	OrganizationType *string     `json:"organizationType"`
	Genre            *string     `json:"genre"`
	Abstract         *string     `json:"abstract"`
	CoverImage       *app.Upload `json:"coverImage"`
	PlayFile         *app.Upload `json:"playFile"`
}

// /plays
func (s *Server) handlePlays(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSearchPlays(w, r)
	case http.MethodPost:
		user, ok := s.authorize(w, r)
		if !ok {
			return
		}
		s.handleCreatePlay(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

// /plays/{id}, /plays/{id}/sample, /plays/{id}/edit-token
func (s *Server) handlePlayByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/plays/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "sample":
			s.handlePlaySample(w, r, id)
		case "edit-token":
			s.handleEditToken(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.authorize(w, r); !ok {
			return
		}
		view, err := s.app.GetPlay(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"play": view})
	case http.MethodPut:
		s.handleUpdatePlay(w, r, id)
	case http.MethodDelete:
		user, ok := s.authorize(w, r)
		if !ok {
			return
		}
		if err := s.app.DeletePlay(user, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		s.audit(r, "play.delete", "success", "user_id", user.ID, "play_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Play deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSearchPlays(w http.ResponseWriter, r *http.Request) {
	query, err := parsePlayQuery(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	result, err := s.app.SearchPlays(query)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parsePlayQuery(r *http.Request) (store.PlayQuery, error) {
	values := r.URL.Query()
	query := store.PlayQuery{
		Search:           strings.TrimSpace(values.Get("search")),
		Genre:            strings.TrimSpace(values.Get("genre")),
		Funding:          strings.TrimSpace(values.Get("fundingType")),
		OrganizationType: strings.TrimSpace(values.Get("organizationType")),
	}
	intFields := []struct {
		name string
		dst  *int
	}{
		{"minDuration", &query.MinDuration},
		{"maxDuration", &query.MaxDuration},
		{"males", &query.Males},
		{"females", &query.Females},
		{"acts", &query.Acts},
		{"page", &query.Page},
		{"limit", &query.Limit},
	}
	for _, f := range intFields {
		raw := strings.TrimSpace(values.Get(f.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return store.PlayQuery{}, &app.ValidationError{Message: "Invalid " + f.name + " value"}
		}
		*f.dst = n
	}
	dateFields := []struct {
		name string
		dst  *time.Time
	}{
		{"pubDateFrom", &query.PubDateFrom},
		{"pubDateTo", &query.PubDateTo},
		{"subDateFrom", &query.SubDateFrom},
		{"subDateTo", &query.SubDateTo},
	}
	for _, f := range dateFields {
		raw := strings.TrimSpace(values.Get(f.name))
		if raw == "" {
			continue
		}
		parsed, err := parseDate(raw)
		if err != nil {
			return store.PlayQuery{}, &app.ValidationError{Message: "Invalid " + f.name + " value"}
		}
		*f.dst = parsed
	}
	return query, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) handleCreatePlay(w http.ResponseWriter, r *http.Request, user domain.User) {
	input, err := s.parsePlayInput(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	play, err := s.app.CreatePlay(user, input)
	if err != nil {
		s.audit(r, "play.create", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "play.create", "success", "user_id", user.ID, "play_id", play.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Play created successfully",
		"play":    play,
	})
}

func (s *Server) parsePlayInput(w http.ResponseWriter, r *http.Request) (app.PlayInput, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req playCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			return app.PlayInput{}, &app.ValidationError{Message: "Invalid JSON body"}
		}
		input := app.PlayInput{
			Title:            req.Title,
			Acts:             req.Acts,
			Duration:         req.Duration,
			Total:            req.Total,
			Males:            req.Males,
			Females:          req.Females,
			Funding:          req.FundingType,
			OrganizationType: req.OrganizationType,
			Genre:            req.Genre,
			Abstract:         req.Abstract,
			CoverImage:       req.CoverImage,
			Script:           req.PlayFile,
		}
		if raw := strings.TrimSpace(req.PublicationDate); raw != "" {
			parsed, err := parseDate(raw)
			if err != nil {
				return app.PlayInput{}, &app.ValidationError{Message: "Invalid publicationDate value"}
			}
			input.PublicationDate = parsed
		}
		return input, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPlayFormBytes)
	if err := r.ParseMultipartForm(maxPlayFormBytes); err != nil {
		return app.PlayInput{}, &app.ValidationError{Message: "Invalid form data"}
	}
	input := app.PlayInput{
		Title:            r.FormValue("title"),
		Funding:          r.FormValue("fundingType"),
		OrganizationType: r.FormValue("organizationType"),
		Genre:            r.FormValue("genre"),
		Abstract:         r.FormValue("abstract"),
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"acts", &input.Acts},
		{"duration", &input.Duration},
		{"total", &input.Total},
		{"males", &input.Males},
		{"females", &input.Females},
	} {
		raw := strings.TrimSpace(r.FormValue(f.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return app.PlayInput{}, &app.ValidationError{Message: "Invalid " + f.name + " value"}
		}
		*f.dst = n
	}
	if raw := strings.TrimSpace(r.FormValue("publicationDate")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return app.PlayInput{}, &app.ValidationError{Message: "Invalid publicationDate value"}
		}
		input.PublicationDate = parsed
	}
	cover, err := formUpload(r, "coverImage")
	if err != nil {
		return app.PlayInput{}, err
	}
	input.CoverImage = cover
	script, err := formUpload(r, "playFile")
	if err != nil {
		return app.PlayInput{}, err
	}
	input.Script = script
	return input, nil
}

// handleUpdatePlay accepts either the session cookie (owner or admin) or a
// scoped edit token presented as a bearer token for this exact play.
func (s *Server) handleUpdatePlay(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := s.editActor(w, r, id)
	if !ok {
		return
	}
	patch, err := s.parsePlayPatch(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	play, err := s.app.UpdatePlay(user, id, patch)
	if err != nil {
		s.audit(r, "play.update", "fail", "user_id", user.ID, "play_id", id, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "play.update", "success", "user_id", user.ID, "play_id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Play updated successfully",
		"play":    play,
	})
}

// editActor resolves the acting user for a play update: a bearer edit token
// scoped to this play wins, otherwise the session cookie is used.
func (s *Server) editActor(w http.ResponseWriter, r *http.Request, playID string) (domain.User, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return s.authorize(w, r)
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	claims, err := s.app.Tokens().VerifyEditToken(raw)
	if err != nil {
		s.audit(r, "edit_token.verify", "fail", "play_id", playID)
		writeError(w, http.StatusUnauthorized, "Invalid or expired edit token")
		return domain.User{}, false
	}
	if claims.PlayID != playID {
		s.audit(r, "edit_token.verify", "fail", "play_id", playID, "reason", "play_mismatch")
		writeError(w, http.StatusForbidden, "Edit token does not match this play")
		return domain.User{}, false
	}
	user, err := s.app.GetUser(claims.Subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired edit token")
		return domain.User{}, false
	}
	s.audit(r, "edit_token.verify", "success", "user_id", user.ID, "play_id", playID)
	return user, true
}

func (s *Server) parsePlayPatch(w http.ResponseWriter, r *http.Request) (app.PlayPatch, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req playUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			return app.PlayPatch{}, &app.ValidationError{Message: "Invalid JSON body"}
		}
		patch := app.PlayPatch{
			Title:            req.Title,
			Acts:             req.Acts,
			Duration:         req.Duration,
			Total:            req.Total,
			Males:            req.Males,
			Females:          req.Females,
			Funding:          req.FundingType,
			OrganizationType: req.OrganizationType,
			Genre:            req.Genre,
			Abstract:         req.Abstract,
			CoverImage:       req.CoverImage,
			Script:           req.PlayFile,
		}
		if req.PublicationDate != nil {
			parsed, err := parseDate(strings.TrimSpace(*req.PublicationDate))
			if err != nil {
				return app.PlayPatch{}, &app.ValidationError{Message: "Invalid publicationDate value"}
			}
			patch.PublicationDate = &parsed
		}
		return patch, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPlayFormBytes)
	if err := r.ParseMultipartForm(maxPlayFormBytes); err != nil {
		return app.PlayPatch{}, &app.ValidationError{Message: "Invalid form data"}
	}
	patch := app.PlayPatch{
		Title:            formField(r, "title"),
		Funding:          formField(r, "fundingType"),
		OrganizationType: formField(r, "organizationType"),
		Genre:            formField(r, "genre"),
		Abstract:         formField(r, "abstract"),
	}
	for _, f := range []struct {
		name string
		dst  **int
	}{
		{"acts", &patch.Acts},
		{"duration", &patch.Duration},
		{"total", &patch.Total},
		{"males", &patch.Males},
		{"females", &patch.Females},
	} {
		raw := formField(r, f.name)
		if raw == nil {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(*raw))
		if err != nil {
			return app.PlayPatch{}, &app.ValidationError{Message: "Invalid " + f.name + " value"}
		}
		*f.dst = &n
	}
	if raw := formField(r, "publicationDate"); raw != nil {
		parsed, err := parseDate(strings.TrimSpace(*raw))
		if err != nil {
			return app.PlayPatch{}, &app.ValidationError{Message: "Invalid publicationDate value"}
		}
		patch.PublicationDate = &parsed
	}
	cover, err := formUpload(r, "coverImage")
	if err != nil {
		return app.PlayPatch{}, err
	}
	patch.CoverImage = cover
	script, err := formUpload(r, "playFile")
	if err != nil {
		return app.PlayPatch{}, err
	}
	patch.Script = script
	return patch, nil
}

func (s *Server) handlePlaySample(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	file, raw, err := s.app.GetSample(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	_, _ = w.Write(raw)
}

func (s *Server) handleEditToken(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}
	editToken, err := s.app.IssueEditToken(user, id)
	if err != nil {
		s.audit(r, "edit_token.issue", "fail", "user_id", user.ID, "play_id", id, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "edit_token.issue", "success", "user_id", user.ID, "play_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"editToken": editToken})
}
