// Package gitinfo reads just enough from a local git checkout to tag
// a built image: the current commit's short SHA. It is a drastic
// simplification of a full git-repo abstraction down to the one
// read-only fact BuildImage needs.
package gitinfo

import (
	"github.com/go-git/go-git/v5"
	"github.com/pkg/errors"
)

const shortSHALen = 7

// HeadShortSHA opens the git repository rooted at dir (or one of its
// parents) and returns the current HEAD commit's short hash, the tag
// suffix every built image carries.
func HeadShortSHA(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", errors.Wrapf(err, "opening git repository at %q", dir)
	}

	head, err := repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}

	sha := head.Hash().String()
	if len(sha) > shortSHALen {
		sha = sha[:shortSHALen]
	}
	return sha, nil
}
