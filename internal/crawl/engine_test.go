package crawl_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/crawl"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

const testProject = "proj-crawl"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("DESKWISE_DATA_DIR", dir)
	defer os.Unsetenv("DESKWISE_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func seedJob(t *testing.T, s store.Store) *models.WebsiteCrawlJob {
	t.Helper()
	job := &models.WebsiteCrawlJob{
		ID:           uuid.NewString(),
		ProjectID:    testProject,
		CollectionID: uuid.NewString(),
		StartURL:     "https://site.example/",
		MaxPages:     10,
		MaxDepth:     3,
		Status:       models.CrawlStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateCrawlJob(context.Background(), job))
	return job
}

func TestAddPageIsIdempotentForNonTerminalStatus(t *testing.T) {
	s := newTestStore(t)
	job := seedJob(t, s)
	e := crawl.NewEngine(s, nil, t.TempDir())

	first, err := e.AddPage(context.Background(), testProject, job.ID, "https://site.example/docs/a")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Depth)

	second, err := e.AddPage(context.Background(), testProject, job.ID, "https://site.example/docs/a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "re-adding an existing non-terminal page must be idempotent")
}

func TestCrawlDeeperFromPageWithNoLinksIsAllZero(t *testing.T) {
	s := newTestStore(t)
	job := seedJob(t, s)
	e := crawl.NewEngine(s, nil, t.TempDir())

	page := &models.WebsitePage{
		ID:              uuid.NewString(),
		CrawlJobID:      job.ID,
		CollectionID:    job.CollectionID,
		ProjectID:       testProject,
		URL:             "https://site.example/lonely",
		URLHash:         "lonely-hash",
		Depth:           1,
		ContentMarkdown: "no links here",
		Status:          models.PageStatusProcessed,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, s.CreateWebsitePage(context.Background(), page))

	result, err := e.CrawlDeeper(context.Background(), testProject, page.ID, crawl.CrawlDeeperRequest{MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, result.LinksFound)
	assert.Equal(t, 0, result.PagesAdded)
	assert.Equal(t, 0, result.PagesSkipped)
}

func TestCrawlDeeperSkipsAlreadyKnownPage(t *testing.T) {
	s := newTestStore(t)
	job := seedJob(t, s)
	e := crawl.NewEngine(s, nil, t.TempDir())

	// The engine keys pages by the sha256 hex of their URL.
	knownHash := sha256.Sum256([]byte("https://site.example/x/y"))
	existing := &models.WebsitePage{
		ID:           uuid.NewString(),
		CrawlJobID:   job.ID,
		CollectionID: job.CollectionID,
		ProjectID:    testProject,
		URL:          "https://site.example/x/y",
		URLHash:      hex.EncodeToString(knownHash[:]),
		Depth:        2,
		Status:       models.PageStatusProcessed,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateWebsitePage(context.Background(), existing))

	page := &models.WebsitePage{
		ID:              uuid.NewString(),
		CrawlJobID:      job.ID,
		CollectionID:    job.CollectionID,
		ProjectID:       testProject,
		URL:             "https://site.example/x",
		URLHash:         "url-hash-x",
		Depth:           2,
		ContentMarkdown: "[doc](https://site.example/x/y) and plain text",
		Status:          models.PageStatusProcessed,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, s.CreateWebsitePage(context.Background(), page))

	result, err := e.CrawlDeeper(context.Background(), testProject, page.ID, crawl.CrawlDeeperRequest{MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.LinksFound)
	assert.Equal(t, 0, result.PagesAdded)
	assert.Equal(t, 1, result.PagesSkipped)
}

func TestCrawlDeeperZeroMaxDepthAddsNothing(t *testing.T) {
	s := newTestStore(t)
	job := seedJob(t, s)
	e := crawl.NewEngine(s, nil, t.TempDir())

	page := &models.WebsitePage{
		ID:              uuid.NewString(),
		CrawlJobID:      job.ID,
		CollectionID:    job.CollectionID,
		ProjectID:       testProject,
		URL:             "https://site.example/p",
		URLHash:         "url-hash-p",
		Depth:           0,
		ContentMarkdown: "[doc](https://site.example/p/q)",
		Status:          models.PageStatusProcessed,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, s.CreateWebsitePage(context.Background(), page))

	result, err := e.CrawlDeeper(context.Background(), testProject, page.ID, crawl.CrawlDeeperRequest{MaxDepth: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, result.LinksFound)
	assert.Equal(t, 0, result.PagesAdded)
}
