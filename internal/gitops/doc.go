// Package gitops implements the git plumbing for docpages: cloning the
// watched source branch into the run workspace and publishing generated
// output to the hosting branch.
//
// Remote failures are wrapped into typed errors (AuthError, NotFoundError,
// BranchMissingError, ...) so callers can distinguish permanent failures from
// transient ones without string matching.
package gitops
