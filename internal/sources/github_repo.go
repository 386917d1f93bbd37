package sources

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"ingestcore/internal/ingestmodel"
)

// GitRepoAdapter streams every non-ignored text file in a Git repository's
// working tree as one ingestmodel.Item. It serves both github_repo (clone
// to a scratch directory, discard after the run) and github_repo_local
// (clone-once to a persistent CloneDir, reused and fetched on subsequent
// runs) spec types.
type GitRepoAdapter struct {
	RepoURL    string
	Branch     string
	Exts       []string
	CloneDir   string // empty means use an ephemeral os.MkdirTemp directory
	Ephemeral  bool   // remove CloneDir after Stream completes
	Shallow    bool
	FetchDepth int
}

func (a *GitRepoAdapter) Stream(ctx context.Context) (<-chan ingestmodel.Item, <-chan error) {
	return runStream(ctx, a.emit)
}

func (a *GitRepoAdapter) emit(ctx context.Context, items chan<- ingestmodel.Item) error {
	dir := a.CloneDir
	cleanup := func() {}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "ingestcore-gitrepo-*")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
		dir = tmp
		cleanup = func() { os.RemoveAll(tmp) }
	} else if a.Ephemeral {
		cleanup = func() { os.RemoveAll(dir) }
	}
	defer cleanup()

	repo, err := a.openOrClone(ctx, dir)
	if err != nil {
		return err
	}

	head, err := repo.Head()
	commitSHA := ""
	if err == nil {
		commitSHA = head.Hash().String()
	}

	matcher := loadGitignore(dir)

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		if matcher != nil {
			parts := strings.Split(relPath, string(os.PathSeparator))
			if matcher.Match(parts, info.IsDir()) {
				return nil
			}
		}
		if !hasAllowedExt(path, a.Exts) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil || !looksLikeText(data) {
			return nil
		}

		docID := fmt.Sprintf("%s@%s", a.RepoURL, filepath.ToSlash(relPath))
		item := ingestmodel.NewItem(docID, string(data), map[string]any{
			ingestmodel.MetaRepo:      a.RepoURL,
			ingestmodel.MetaFilePath:  filepath.ToSlash(relPath),
			ingestmodel.MetaBranch:    a.Branch,
			ingestmodel.MetaCommitSHA: commitSHA,
		})

		select {
		case items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func (a *GitRepoAdapter) openOrClone(ctx context.Context, dir string) (*git.Repository, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		repo, err := git.PlainOpen(dir)
		if err != nil {
			return nil, fmt.Errorf("open existing clone: %w", err)
		}
		wt, err := repo.Worktree()
		if err == nil {
			fetchOpts := &git.FetchOptions{RemoteName: "origin"}
			if ferr := repo.FetchContext(ctx, fetchOpts); ferr != nil && ferr != git.NoErrAlreadyUpToDate {
				return nil, fmt.Errorf("fetch: %w", ferr)
			}
			checkoutOpts := &git.CheckoutOptions{Force: true}
			if a.Branch != "" {
				checkoutOpts.Branch = plumbing.NewRemoteReferenceName("origin", a.Branch)
			}
			_ = wt.Checkout(checkoutOpts)
		}
		return repo, nil
	}

	opts := &git.CloneOptions{URL: a.RepoURL}
	if a.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(a.Branch)
	}
	if a.Shallow {
		depth := a.FetchDepth
		if depth <= 0 {
			depth = 1
		}
		opts.Depth = depth
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", a.RepoURL, err)
	}
	return repo, nil
}

func loadGitignore(dir string) gitignore.Matcher {
	f, err := os.Open(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, gitignore.ParsePattern(scanner.Text(), nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}
