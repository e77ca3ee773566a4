package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/transformd/internal/domain"
)

func TestMemoryRepositoryPutGetChildren(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Put(ctx, domain.Resource{Path: "/content/dam/a.jpg", Type: domain.ResourceTypeAsset}, nil))
	require.NoError(t, repo.Put(ctx, domain.Resource{Path: "/content/dam/a.jpg/jcr:content/renditions/original", Type: domain.ResourceTypeFile, MimeType: "image/jpeg"}, []byte("orig")))
	require.NoError(t, repo.Put(ctx, domain.Resource{Path: "/content/dam/a.jpg/jcr:content/renditions/cq5dam.web.1280.1280.jpeg", Type: domain.ResourceTypeFile}, []byte("web")))

	res, ok, err := repo.Get(ctx, "/content/dam/a.jpg/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ResourceTypeAsset, res.Type)

	original, _, err := Child(ctx, repo, "/content/dam/a.jpg", "jcr:content", "renditions", "original")
	require.NoError(t, err)
	assert.True(t, original.HasBinary())

	renditions, err := repo.Children(ctx, "/content/dam/a.jpg/jcr:content/renditions")
	require.NoError(t, err)
	require.Len(t, renditions, 2)
	assert.Equal(t, "original", renditions[0].Name(), "children keep creation order")

	data, err := repo.ReadBinary(ctx, renditions[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("web"), data)

	_, err = repo.ReadBinary(ctx, res)
	assert.ErrorIs(t, err, ErrNoBinary)

	assert.Error(t, repo.Put(ctx, domain.Resource{Path: "relative"}, nil))
}

func TestMemoryRepositoryReplicationStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Put(ctx, domain.Resource{Path: "/content/site/en", Type: domain.ResourceTypePage}, nil))

	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetReplicationStatus(ctx, "/content/site/en", domain.ReplicationStatus{LastAction: "Deactivate", LastBy: "admin", At: at}))

	res, _, err := repo.Get(ctx, "/content/site/en")
	require.NoError(t, err)
	require.NotNil(t, res.Replication)
	assert.Equal(t, "Deactivate", res.Replication.LastAction)
	assert.Equal(t, at, res.Replication.At)

	assert.ErrorIs(t, repo.SetReplicationStatus(ctx, "/missing", domain.ReplicationStatus{}), ErrNotFound)
}
