package artifact

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"
)

// GitHubSource reads the artifact from a file in a GitHub repository.
type GitHubSource struct {
	client *github.Client
	Owner  string
	Repo   string
	Path   string
	Ref    string
	Format Format
}

// GitHubConfig locates an artifact in a repository.
type GitHubConfig struct {
	Owner   string
	Repo    string
	Path    string
	Ref     string
	Token   string // optional, required for private repositories
	BaseURL string // optional, for GitHub Enterprise or tests
	Format  Format
}

// NewGitHubSource creates a source with an optionally authenticated client.
func NewGitHubSource(ctx context.Context, cfg GitHubConfig) (*GitHubSource, error) {
	if cfg.Owner == "" || cfg.Repo == "" || cfg.Path == "" {
		return nil, fmt.Errorf("github source needs owner, repo and path")
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(httpClient)

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHubSource{
		client: client,
		Owner:  cfg.Owner,
		Repo:   cfg.Repo,
		Path:   cfg.Path,
		Ref:    cfg.Ref,
		Format: cfg.Format,
	}, nil
}

func (s *GitHubSource) Fetch(ctx context.Context) (*Blob, error) {
	var opts *github.RepositoryContentGetOptions
	if s.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: s.Ref}
	}

	file, _, _, err := s.client.Repositories.GetContents(ctx, s.Owner, s.Repo, s.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("get contents: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory", s.Path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode contents: %w", err)
	}
	return &Blob{Name: file.GetPath(), Format: s.Format, Data: []byte(content)}, nil
}

func (s *GitHubSource) String() string {
	ref := s.Ref
	if ref == "" {
		ref = "HEAD"
	}
	return fmt.Sprintf("github:%s/%s/%s@%s", s.Owner, s.Repo, s.Path, ref)
}
