package server

import (
	"net/http"
	"strings"

	"playsdb/internal/app"
	"playsdb/pkg/domain"
)

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// The public form asks for first and last name separately.
type siteContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"emailAddress"`
	Phone     string `json:"mobileNo"`
	Message   string `json:"message"`
}

func (s *Server) handleContactSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.contactLimiter, "Too many contact requests") {
		s.audit(r, "contact.site", "rate_limited")
		return
	}
	var req siteContactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" || last == "" {
		writeError(w, http.StatusBadRequest, "First and last name are required")
		return
	}
	in := app.ContactInput{
		Name:    first + " " + last,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	}
	if err := s.app.ContactSite(in); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "contact.site", "success")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message sent successfully"})
}

func (s *Server) handleContactUser(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	recipientID := strings.TrimPrefix(r.URL.Path, "/contact/user/")
	if recipientID == "" || strings.Contains(recipientID, "/") {
		http.NotFound(w, r)
		return
	}
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := s.app.ContactUser(user, recipientID, app.ContactInput(req)); err != nil {
		s.audit(r, "contact.user", "fail", "user_id", user.ID, "recipient_id", recipientID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "contact.user", "success", "user_id", user.ID, "recipient_id", recipientID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message sent successfully"})
}
