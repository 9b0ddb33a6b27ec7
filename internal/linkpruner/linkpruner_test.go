package linkpruner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkboard/linkboard/internal/models"
)

type recordingAPI struct {
	mu      sync.Mutex
	links   []models.Link
	deleted []string
	failID  string
}

func (r *recordingAPI) ListLinks(ctx context.Context) ([]models.Link, error) {
	return r.links, nil
}

func (r *recordingAPI) DeleteLink(ctx context.Context, linkID string) error {
	if linkID == r.failID {
		return errors.New("api request failed (500): boom")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, linkID)

	return nil
}

func makeLink(id string, active bool, expiresAt *time.Time) models.Link {
	return models.Link{
		ID:          id,
		OriginalURL: "https://example.com/" + id,
		IsActive:    active,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}
}

func TestPrunable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		link models.Link
		want bool
	}{
		{name: "active without expiry", link: makeLink("l1", true, nil), want: false},
		{name: "archived", link: makeLink("l2", false, nil), want: true},
		{name: "active but expired", link: makeLink("l3", true, &past), want: true},
		{name: "active with future expiry", link: makeLink("l4", true, &future), want: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Prunable(test.link, now))
		})
	}
}

func TestPruneDeletesOnlyPrunableLinks(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	api := &recordingAPI{
		links: []models.Link{
			makeLink("keep-1", true, nil),
			makeLink("gone-1", false, nil),
			makeLink("gone-2", true, &past),
			makeLink("keep-2", true, nil),
		},
	}

	report, err := New(api, 2).Prune(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Deleted, 2)
	assert.Empty(t, report.Failed)
	assert.ElementsMatch(t, []string{"gone-1", "gone-2"}, api.deleted)
}

func TestPruneCollectsFailuresWithoutAborting(t *testing.T) {
	api := &recordingAPI{
		links: []models.Link{
			makeLink("gone-1", false, nil),
			makeLink("stuck", false, nil),
			makeLink("gone-2", false, nil),
		},
		failID: "stuck",
	}

	report, err := New(api, 3).Prune(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Deleted, 2)
	require.Contains(t, report.Failed, "stuck")
	assert.Error(t, report.Failed["stuck"])
}

func TestPruneWithNothingToDo(t *testing.T) {
	api := &recordingAPI{links: []models.Link{makeLink("keep", true, nil)}}

	report, err := New(api, 4).Prune(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, report.Failed)
	assert.Empty(t, api.deleted)
}
