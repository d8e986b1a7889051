package ledger

import "github.com/alanyoungcy/optionsdesk/internal/domain"

// Authorize allows the owner of a trade or an admin.
func Authorize(p domain.Principal, ownerID string) error {
	if p.UserID != "" && p.UserID == ownerID {
		return nil
	}
	if p.IsAdmin() {
		return nil
	}
	return domain.ErrForbidden
}

// AuthorizeOwner allows only the owner. Portfolios and their positions are
// private to the user that created them, admins included.
func AuthorizeOwner(p domain.Principal, ownerID string) error {
	if p.UserID != "" && p.UserID == ownerID {
		return nil
	}
	return domain.ErrForbidden
}
