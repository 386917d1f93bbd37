package sources

import "fmt"

// Spec is the tagged union of source specifications a job payload's
// "sources" list carries. Type selects which fields apply; fields unused
// by a given Type are ignored.
type Spec struct {
	Type string `json:"type"`

	// github_repo / github_repo_local
	Repo        string   `json:"repo,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	Exts        []string `json:"exts,omitempty"`
	Shallow     bool     `json:"shallow,omitempty"`
	FetchDepth  int      `json:"fetch_depth,omitempty"`
	LocalClonePath string `json:"local_clone_path,omitempty"`

	// github_org
	Org             string   `json:"org,omitempty"`
	Visibility      string   `json:"visibility,omitempty"`
	IncludeArchived bool     `json:"include_archived,omitempty"`
	Topics          []string `json:"topics,omitempty"`

	// github_issues
	State            string   `json:"state,omitempty"`
	Labels           []string `json:"labels,omitempty"`
	IncludeComments  bool     `json:"include_comments,omitempty"`

	// local_dir
	Path    string `json:"path,omitempty"`
	RepoURL string `json:"repo_url,omitempty"`

	// web_url
	URLs []string `json:"urls,omitempty"`

	// website
	StartURLs       []string `json:"start_urls,omitempty"`
	AllowedPrefixes []string `json:"allowed_prefixes,omitempty"`
	MaxPages        int      `json:"max_pages,omitempty"`

	// sitemap
	SitemapURL string `json:"sitemap_url,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

const (
	TypeGitHubRepo      = "github_repo"
	TypeGitHubRepoLocal = "github_repo_local"
	TypeGitHubOrg       = "github_org"
	TypeGitHubIssues    = "github_issues"
	TypeLocalDir        = "local_dir"
	TypeWebURL          = "web_url"
	TypeWebsite         = "website"
	TypeSitemap         = "sitemap"
)

// Validate checks that a Spec carries the fields its Type requires. It is
// meant to run at enqueue time so malformed job payloads fail fast instead
// of surfacing as an opaque worker error.
func (s Spec) Validate() error {
	switch s.Type {
	case TypeGitHubRepo, TypeGitHubRepoLocal:
		if s.Repo == "" {
			return fmt.Errorf("%s requires repo", s.Type)
		}
	case TypeGitHubOrg:
		if s.Org == "" {
			return fmt.Errorf("%s requires org", s.Type)
		}
	case TypeGitHubIssues:
		if s.Repo == "" {
			return fmt.Errorf("%s requires repo", s.Type)
		}
	case TypeLocalDir:
		if s.Path == "" {
			return fmt.Errorf("%s requires path", s.Type)
		}
	case TypeWebURL:
		if len(s.URLs) == 0 {
			return fmt.Errorf("%s requires urls", s.Type)
		}
	case TypeWebsite:
		if len(s.StartURLs) == 0 {
			return fmt.Errorf("%s requires start_urls", s.Type)
		}
	case TypeSitemap:
		if s.SitemapURL == "" {
			return fmt.Errorf("%s requires sitemap_url", s.Type)
		}
	default:
		return fmt.Errorf("unknown source type: %q", s.Type)
	}
	return nil
}

// Build resolves a Spec into a concrete Adapter. defaultExts is the fallback
// extension allowlist (config.IngestExts) used when a spec omits its own.
func Build(spec Spec, defaultExts []string, ghToken string) (Adapter, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	exts := spec.Exts
	if len(exts) == 0 {
		exts = defaultExts
	}
	switch spec.Type {
	case TypeGitHubRepo:
		return &GitRepoAdapter{RepoURL: spec.Repo, Branch: spec.Branch, Exts: exts, CloneDir: "", Ephemeral: true}, nil
	case TypeGitHubRepoLocal:
		dir := spec.LocalClonePath
		return &GitRepoAdapter{RepoURL: spec.Repo, Branch: spec.Branch, Exts: exts, CloneDir: dir, Shallow: spec.Shallow, FetchDepth: spec.FetchDepth}, nil
	case TypeGitHubOrg:
		return &GitHubOrgAdapter{Org: spec.Org, Visibility: spec.Visibility, IncludeArchived: spec.IncludeArchived, Topics: spec.Topics, Branch: spec.Branch, Exts: exts, Token: ghToken}, nil
	case TypeGitHubIssues:
		return &GitHubIssuesAdapter{Repo: spec.Repo, State: spec.State, Labels: spec.Labels, IncludeComments: spec.IncludeComments, Token: ghToken}, nil
	case TypeLocalDir:
		return &LocalDirAdapter{Path: spec.Path, RepoURL: spec.RepoURL, Exts: exts}, nil
	case TypeWebURL:
		return &WebURLAdapter{URLs: spec.URLs}, nil
	case TypeWebsite:
		return &WebsiteAdapter{StartURLs: spec.StartURLs, AllowedPrefixes: spec.AllowedPrefixes, MaxPages: spec.MaxPages}, nil
	case TypeSitemap:
		return &SitemapAdapter{SitemapURL: spec.SitemapURL, Limit: spec.Limit}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", spec.Type)
	}
}
