package interests

import (
	"context"
	"fmt"
	"strings"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/meta"
)

type searcher interface {
	SearchInterests(ctx context.Context, query string, limit int) ([]meta.Interest, error)
}

// Service runs interest searches against the Graph API.
type Service interface {
	Search(ctx context.Context, query string, limit int) ([]meta.Interest, error)
}

type service struct {
	client searcher
}

// NewService builds the interest search service.
func NewService(client searcher) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("graph client required")
	}
	return &service{client: client}, nil
}

// Search proxies the query upstream. Quota enforcement happens in the HTTP
// layer around this call, not here.
func (s *service) Search(ctx context.Context, query string, limit int) ([]meta.Interest, error) {
	return s.client.SearchInterests(ctx, strings.TrimSpace(query), limit)
}
