package server

import (
	"net/http"
	"strings"

	"playsdb/pkg/domain"
)

type adminAccountRequest struct {
	Account int `json:"account"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, admin domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.AdminListUsers()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// /admin/users/{id} and /admin/users/{id}/account
func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 {
		if parts[1] != "account" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		var req adminAccountRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		updated, err := s.app.AdminSetAccount(id, req.Account)
		if err != nil {
			s.audit(r, "admin.account.update", "fail", "user_id", admin.ID, "target_id", id, "reason", err.Error())
			writeAppError(w, r, err)
			return
		}
		s.audit(r, "admin.account.update", "success", "user_id", admin.ID, "target_id", id, "account", req.Account)
		writeJSON(w, http.StatusOK, map[string]any{"user": updated})
		return
	}

	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.AdminDeleteUser(id); err != nil {
		s.audit(r, "admin.user.delete", "fail", "user_id", admin.ID, "target_id", id, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "admin.user.delete", "success", "user_id", admin.ID, "target_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
