package server

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"

	"playsdb/internal/app"
	"playsdb/pkg/domain"
)

const maxProfileFormBytes = 4 << 20

type profileUpdateRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Phone      *string `json:"phone"`
	Contact    *int    `json:"contact"`
	SchoolName *string `json:"schoolName"`

	Description *string `json:"description"`
	Biography   *string `json:"biography"`
	CompanyName *string `json:"companyName"`
	Street      *string `json:"street"`
	StateCity   *string `json:"stateCity"`
	Country     *string `json:"country"`
	Website     *string `json:"website"`
}

func (req profileUpdateRequest) toPatch() app.UserPatch {
	patch := app.UserPatch{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Contact:    req.Contact,
		SchoolName: req.SchoolName,
	}
	if req.Description != nil || req.Biography != nil || req.CompanyName != nil ||
		req.Street != nil || req.StateCity != nil || req.Country != nil || req.Website != nil {
		patch.Profile = &app.ProfilePatch{
			Description: req.Description,
			Biography:   req.Biography,
			CompanyName: req.CompanyName,
			Street:      req.Street,
			StateCity:   req.StateCity,
			Country:     req.Country,
			Website:     req.Website,
		}
	}
	return patch
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	case http.MethodPut:
		s.handleProfileUpdate(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request, user domain.User) {
	patch, err := s.parseProfilePatch(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	updated, err := s.app.UpdateProfile(user.ID, patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "profile.update", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"user": updated})
}

// parseProfilePatch accepts either a JSON body or a multipart form carrying
// an optional profilePicture file alongside the text fields.
func (s *Server) parseProfilePatch(w http.ResponseWriter, r *http.Request) (app.UserPatch, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req profileUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			return app.UserPatch{}, &app.ValidationError{Message: "Invalid JSON body"}
		}
		return req.toPatch(), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProfileFormBytes)
	if err := r.ParseMultipartForm(maxProfileFormBytes); err != nil {
		return app.UserPatch{}, &app.ValidationError{Message: "Invalid form data"}
	}
	patch := app.UserPatch{
		FirstName:  formField(r, "firstName"),
		LastName:   formField(r, "lastName"),
		Phone:      formField(r, "phone"),
		SchoolName: formField(r, "schoolName"),
	}
	if raw := formField(r, "contact"); raw != nil {
		contact, err := strconv.Atoi(strings.TrimSpace(*raw))
		if err != nil {
			return app.UserPatch{}, &app.ValidationError{Message: "Invalid contact value"}
		}
		patch.Contact = &contact
	}
	profile := &app.ProfilePatch{
		Description: formField(r, "description"),
		Biography:   formField(r, "biography"),
		CompanyName: formField(r, "companyName"),
		Street:      formField(r, "street"),
		StateCity:   formField(r, "stateCity"),
		Country:     formField(r, "country"),
		Website:     formField(r, "website"),
	}
	if profile.Description != nil || profile.Biography != nil || profile.CompanyName != nil ||
		profile.Street != nil || profile.StateCity != nil || profile.Country != nil || profile.Website != nil {
		patch.Profile = profile
	}

	upload, err := formUpload(r, "profilePicture")
	if err != nil {
		return app.UserPatch{}, err
	}
	if upload != nil {
		uri, err := app.EncodeCoverImage(*upload)
		if err != nil {
			return app.UserPatch{}, err
		}
		patch.ProfilePicture = &uri
	}
	return patch, nil
}

// formField returns a pointer only when the field was present in the form,
// preserving the patch "absent means unchanged" semantics.
func formField(r *http.Request, name string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

// formUpload reads a multipart file into a base64 upload. Returns nil when
// the field is absent.
func formUpload(r *http.Request, name string) (*app.Upload, error) {
	file, header, err := r.FormFile(name)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, &app.ValidationError{Message: "Invalid form data"}
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, &app.ValidationError{Message: "Could not read uploaded file"}
	}
	return &app.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/users/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.GetUser(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
