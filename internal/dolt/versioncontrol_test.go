package dolt

import (
	"errors"
	"testing"
)

func TestCommitOptionsAuthorString(t *testing.T) {
	opts := CommitOptions{
		Message:     "Update /tenants/t1/projects/p1/agents/a1 via API",
		AuthorName:  "jane",
		AuthorEmail: "jane@example.com",
	}
	if got := opts.AuthorString(); got != "jane <jane@example.com>" {
		t.Errorf("AuthorString() = %q", got)
	}
}

func TestIsNothingToCommit(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 1105: nothing to commit"), true},
		{errors.New("NOTHING TO COMMIT, working tree clean"), true},
		{errors.New("Error 1064: syntax error"), false},
	}
	for _, tc := range cases {
		if got := isNothingToCommit(tc.err); got != tc.want {
			t.Errorf("isNothingToCommit(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
