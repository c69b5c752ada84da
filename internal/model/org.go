package model

// OrgContext carries the per-request tenant scope extracted from the bearer
// token.  Every core operation takes it explicitly; nothing in the service
// reads tenant state from globals.
//
// Fields:
//
//	OrgID  – organization the request acts on behalf of.
//	UserID – authenticated user inside that organization.
type OrgContext struct {
	OrgID  uint64
	UserID uint64
}
