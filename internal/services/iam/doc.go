// Package iam implements identity and access management for estateapi.
//
// The service resolves bearer tokens to locally owned principals, provisions
// principals on first registration, and owns every mutation of a principal:
// role assignment, self-service profile edits, and the favorites set.
//
// Request flow:
//
//	Authorization header → ExtractBearer → Verifier (identity provider)
//	       ↓
//	   PrincipalRepository.FindByExternalID → TouchLastLogin (best effort)
//	       ↓
//	   auth.Principal on the request context → auth.Authorize(RoleSet)
//
// Roles are read from the principal record at authentication time. The gate
// compares them against the RoleSet declared for the route and never mutates
// shared state.
package iam
