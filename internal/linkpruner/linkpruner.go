// Package linkpruner bulk-removes links that are no longer serving
// traffic: archived ones and ones past their expiry. Deletions fan out
// over a small bounded worker pool; each one is an ordinary
// authenticated DELETE, so 401 handling is the adapter's as usual.
package linkpruner

import (
	"context"
	"sync"
	"time"

	funk "github.com/thoas/go-funk"

	"github.com/linkboard/linkboard/internal/logger"
	"github.com/linkboard/linkboard/internal/models"
)

// linksAPI is the slice of the API client the pruner consumes.
type linksAPI interface {
	ListLinks(ctx context.Context) ([]models.Link, error)
	DeleteLink(ctx context.Context, linkID string) error
}

// Report summarises one prune pass.
type Report struct {
	// Deleted lists the links removed.
	Deleted []models.Link

	// Failed maps link IDs to the error their deletion hit.
	Failed map[string]error
}

// Pruner deletes prunable links through the API client.
type Pruner struct {
	api     linksAPI
	workers int
}

// New returns a Pruner issuing at most workers concurrent deletions.
func New(api linksAPI, workers int) *Pruner {
	if workers < 1 {
		workers = 1
	}

	return &Pruner{api: api, workers: workers}
}

// Prunable reports whether the link should be removed as of now.
func Prunable(link models.Link, now time.Time) bool {
	if !link.IsActive {
		return true
	}

	return link.ExpiresAt != nil && link.ExpiresAt.Before(now)
}

// selectPrunable picks the links worth deleting.
func selectPrunable(links []models.Link, now time.Time) []models.Link {
	return funk.Filter(links, func(link models.Link) bool {
		return Prunable(link, now)
	}).([]models.Link)
}

type outcome struct {
	link models.Link
	err  error
}

// Prune lists the user's links, selects the prunable ones and deletes
// them. Individual deletion failures do not abort the pass; they are
// collected in the report.
func (p *Pruner) Prune(ctx context.Context) (*Report, error) {
	links, err := p.api.ListLinks(ctx)
	if err != nil {
		return nil, err
	}

	prunable := selectPrunable(links, time.Now())
	report := &Report{Failed: map[string]error{}}
	if len(prunable) == 0 {
		return report, nil
	}

	queue := make(chan models.Link)
	outcomes := make(chan outcome)

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for link := range queue {
				outcomes <- outcome{link: link, err: p.api.DeleteLink(ctx, link.ID)}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, link := range prunable {
			select {
			case queue <- link:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(outcomes)
	}()

	for result := range outcomes {
		if result.err != nil {
			report.Failed[result.link.ID] = result.err
			continue
		}
		report.Deleted = append(report.Deleted, result.link)
	}

	logger.Log.Infof("pruned %d of %d prunable links", len(report.Deleted), len(prunable))

	return report, nil
}
