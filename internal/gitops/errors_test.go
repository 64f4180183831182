package gitops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsPermanentGitError basic classification sanity.
func TestIsPermanentGitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth typed", &AuthError{Op: "push", URL: "x", Err: errors.New("denied")}, true},
		{"not found typed", &NotFoundError{Op: "clone", URL: "x", Err: errors.New("missing")}, true},
		{"branch missing typed", &BranchMissingError{URL: "x", Branch: "gh-pages", Err: errors.New("ref")}, true},
		{"auth string", errors.New("authentication required"), true},
		{"permission string", errors.New("permission denied (publickey)"), true},
		{"repo not found string", errors.New("repository not found"), true},
		{"transient", errors.New("connection reset by peer"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPermanentGitError(tc.err))
		})
	}
}

func TestClassifyRemoteError(t *testing.T) {
	var authErr *AuthError
	err := classifyRemoteError("push", "ssh://host/repo", errors.New("fatal: could not read credentials"))
	assert.True(t, errors.As(err, &authErr))

	var nfErr *NotFoundError
	err = classifyRemoteError("clone", "https://host/repo", errors.New("repository does not exist"))
	assert.True(t, errors.As(err, &nfErr))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, classifyRemoteError("fetch", "u", plain))
	assert.NoError(t, classifyRemoteError("fetch", "u", nil))
}
