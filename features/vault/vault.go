// Package vault groups documents into project workspaces and scopes
// retrieval to a single project.
package vault

import (
	"context"

	"qaai/apps/backend/internal/retrieval"
)

type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DocumentCount int    `json:"document_count"`
}

type Repository interface {
	Save(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, opts *retrieval.Options) ([]retrieval.Result, error)
}

type Service struct {
	repo     Repository
	searcher Searcher
}

func NewService(repo Repository, searcher Searcher) *Service {
	return &Service{repo: repo, searcher: searcher}
}

func (s *Service) Create(ctx context.Context, p *Project) error {
	return s.repo.Save(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// Update renames a project; the refreshed record (with its document
// count) comes back from the repository.
func (s *Service) Update(ctx context.Context, id string, p *Project) (*Project, error) {
	p.ID = id
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

// Search restricts retrieval to the project's documents. The project
// must exist; an empty result for a valid project is not an error.
func (s *Service) Search(ctx context.Context, id, query string, opts *retrieval.Options) ([]retrieval.Result, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &retrieval.Options{}
	}
	opts.ProjectID = id
	return s.searcher.Search(ctx, query, opts)
}
