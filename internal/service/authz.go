package service

import "docintake/internal/model"

// RoleAdmin grants elevated access across owners.
const RoleAdmin = "admin"

// Actor is the opaque caller identity handed in by the boundary. The service
// never authenticates; it only authorizes with what it is given.
type Actor struct {
	ID        string
	Role      string
	IPAddress string
	UserAgent string
}

// Authorizer is the single authorization capability consulted by the service,
// instead of duplicating owner-or-public checks inline in every method.
type Authorizer interface {
	// CanRead reports whether the actor may view or download the document.
	CanRead(doc *model.Document, actor Actor) bool
	// CanModify reports whether the actor may retry, cancel, delete, or
	// edit fields of the document.
	CanModify(doc *model.Document, actor Actor) bool
}

// ownerAuthorizer implements the default ownership policy: owners and admins
// can do everything; public documents are readable by anyone.
type ownerAuthorizer struct{}

// NewOwnerAuthorizer returns the default Authorizer.
func NewOwnerAuthorizer() Authorizer {
	return ownerAuthorizer{}
}

func (ownerAuthorizer) CanRead(doc *model.Document, actor Actor) bool {
	if doc.IsPublic {
		return true
	}
	return ownerAuthorizer{}.CanModify(doc, actor)
}

func (ownerAuthorizer) CanModify(doc *model.Document, actor Actor) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	return actor.ID != "" && actor.ID == doc.OwnerID
}
