package api

import (
	"errors"
	"net/http"
	"strings"

	"pcbtrack-api/domain"
)

// Identity headers carried on mutating requests. The service runs on a
// trusted lab network without authentication; the headers only attribute
// change-log entries.
const (
	HeaderUserRole = "X-User-Role"
	HeaderUserName = "X-User-Name"
)

var errMissingUserRole = errors.New("missing or invalid " + HeaderUserRole + " header, expected Designer or Reviewer")

// identityFromHeaders extracts the acting role and optional user name
// from a request.
func identityFromHeaders(h http.Header) (domain.UserRole, string, error) {
	role := domain.UserRole(strings.TrimSpace(h.Get(HeaderUserRole)))
	if !role.Valid() {
		return "", "", errMissingUserRole
	}
	return role, strings.TrimSpace(h.Get(HeaderUserName)), nil
}
