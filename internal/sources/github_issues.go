package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ingestcore/internal/ingestmodel"
)

// GitHubIssuesAdapter streams an issue tracker's issues (and, optionally,
// their comment threads flattened into the issue body) as one item per
// issue. Repo is "<owner>/<name>".
type GitHubIssuesAdapter struct {
	Repo            string
	State           string // "open", "closed", "all" — defaults to "open"
	Labels          []string
	IncludeComments bool
	Token           string
}

type githubIssue struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	State   string   `json:"state"`
	HTMLURL string   `json:"html_url"`
	Labels  []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest json.RawMessage `json:"pull_request"`
}

type githubComment struct {
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	Body string `json:"body"`
}

func (a *GitHubIssuesAdapter) Stream(ctx context.Context) (<-chan ingestmodel.Item, <-chan error) {
	return runStream(ctx, a.emit)
}

func (a *GitHubIssuesAdapter) emit(ctx context.Context, items chan<- ingestmodel.Item) error {
	state := a.State
	if state == "" {
		state = "open"
	}

	page := 1
	for {
		issues, err := a.fetchIssuePage(ctx, state, page)
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			return nil
		}

		for _, issue := range issues {
			if issue.PullRequest != nil {
				continue // pull requests are listed alongside issues; skip them
			}
			if !a.matchesLabels(issue) {
				continue
			}

			text := issue.Title + "\n\n" + issue.Body
			if a.IncludeComments {
				comments, err := a.fetchComments(ctx, issue.Number)
				if err != nil {
					return err
				}
				var b strings.Builder
				b.WriteString(text)
				for _, c := range comments {
					fmt.Fprintf(&b, "\n\n---\n%s:\n%s", c.User.Login, c.Body)
				}
				text = b.String()
			}

			labels := make([]string, 0, len(issue.Labels))
			for _, l := range issue.Labels {
				labels = append(labels, l.Name)
			}

			item := ingestmodel.NewItem(issue.HTMLURL, text, map[string]any{
				ingestmodel.MetaRepo:        a.Repo,
				ingestmodel.MetaIssueNumber: issue.Number,
				ingestmodel.MetaState:       issue.State,
				ingestmodel.MetaLabels:      labels,
				ingestmodel.MetaTitle:       issue.Title,
			})
			select {
			case items <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		page++
	}
}

func (a *GitHubIssuesAdapter) matchesLabels(issue githubIssue) bool {
	if len(a.Labels) == 0 {
		return true
	}
	have := make(map[string]bool, len(issue.Labels))
	for _, l := range issue.Labels {
		have[l.Name] = true
	}
	for _, want := range a.Labels {
		if have[want] {
			return true
		}
	}
	return false
}

func (a *GitHubIssuesAdapter) fetchIssuePage(ctx context.Context, state string, page int) ([]githubIssue, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/issues?state=%s&per_page=100&page=%d", a.Repo, state, page)
	var issues []githubIssue
	if err := a.getJSON(ctx, url, &issues); err != nil {
		return nil, fmt.Errorf("list issues for %s: %w", a.Repo, err)
	}
	return issues, nil
}

func (a *GitHubIssuesAdapter) fetchComments(ctx context.Context, issueNumber int) ([]githubComment, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/issues/%d/comments?per_page=100", a.Repo, issueNumber)
	var comments []githubComment
	if err := a.getJSON(ctx, url, &comments); err != nil {
		return nil, fmt.Errorf("list comments for %s#%d: %w", a.Repo, issueNumber, err)
	}
	return comments, nil
}

func (a *GitHubIssuesAdapter) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
