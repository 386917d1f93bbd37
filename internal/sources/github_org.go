package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ingestcore/internal/ingestmodel"
)

// GitHubOrgAdapter enumerates an organization's repositories via the GitHub
// REST API, then streams each through a GitRepoAdapter in turn. Unlike
// GitRepoAdapter, its clones are always ephemeral: an org ingest is a
// breadth sweep, not something worth keeping a persistent checkout for.
type GitHubOrgAdapter struct {
	Org             string
	Visibility      string // "", "public", "private", "all" — passed through to the API
	IncludeArchived bool
	Topics          []string
	Branch          string
	Exts            []string
	Token           string
}

type githubRepoListing struct {
	Name     string   `json:"name"`
	FullName string   `json:"full_name"`
	CloneURL string   `json:"clone_url"`
	Archived bool     `json:"archived"`
	Topics   []string `json:"topics"`
}

func (a *GitHubOrgAdapter) Stream(ctx context.Context) (<-chan ingestmodel.Item, <-chan error) {
	return runStream(ctx, a.emit)
}

func (a *GitHubOrgAdapter) emit(ctx context.Context, items chan<- ingestmodel.Item) error {
	repos, err := a.listRepos(ctx)
	if err != nil {
		return err
	}

	for _, repo := range repos {
		if !repo.Archived || a.IncludeArchived {
			if !a.matchesTopics(repo.Topics) {
				continue
			}
			sub := &GitRepoAdapter{
				RepoURL:   repo.CloneURL,
				Branch:    a.Branch,
				Exts:      a.Exts,
				Ephemeral: true,
			}
			subItems, subErrs := sub.Stream(ctx)
		drain:
			for {
				select {
				case item, ok := <-subItems:
					if !ok {
						break drain
					}
					select {
					case items <- item:
					case <-ctx.Done():
						return ctx.Err()
					}
				case err, ok := <-subErrs:
					if ok && err != nil {
						return fmt.Errorf("repo %s: %w", repo.FullName, err)
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

func (a *GitHubOrgAdapter) matchesTopics(repoTopics []string) bool {
	if len(a.Topics) == 0 {
		return true
	}
	have := make(map[string]bool, len(repoTopics))
	for _, t := range repoTopics {
		have[t] = true
	}
	for _, want := range a.Topics {
		if have[want] {
			return true
		}
	}
	return false
}

func (a *GitHubOrgAdapter) listRepos(ctx context.Context) ([]githubRepoListing, error) {
	var all []githubRepoListing
	page := 1
	for {
		url := fmt.Sprintf("https://api.github.com/orgs/%s/repos?per_page=100&page=%d", a.Org, page)
		if a.Visibility != "" {
			url += "&type=" + a.Visibility
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if a.Token != "" {
			req.Header.Set("Authorization", "Bearer "+a.Token)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list repos for org %s: %w", a.Org, err)
		}
		var batch []githubRepoListing
		decodeErr := json.NewDecoder(resp.Body).Decode(&batch)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("github org %s returned status %s", a.Org, resp.Status)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("decode org repos: %w", decodeErr)
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
		page++
	}
	return all, nil
}
