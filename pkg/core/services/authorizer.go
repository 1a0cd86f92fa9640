package services

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

// OwnerAuthorizer grants a scope to its owner and to configured admins.
// Scopes are owner e-mail addresses, compared case-insensitively.
type OwnerAuthorizer struct {
	admins map[string]struct{}
}

func NewOwnerAuthorizer(adminEmails []string) *OwnerAuthorizer {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email = normalizeEmail(email); email != "" {
			admins[email] = struct{}{}
		}
	}
	return &OwnerAuthorizer{admins: admins}
}

func (a *OwnerAuthorizer) OwnsScope(_ context.Context, principal domain.Principal, scope string) (bool, error) {
	if principal.Anonymous() || scope == "" {
		return false, nil
	}
	email := normalizeEmail(principal.Email)
	if email == normalizeEmail(scope) {
		return true, nil
	}
	_, admin := a.admins[email]
	return admin, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ ports.Authorizer = (*OwnerAuthorizer)(nil)
