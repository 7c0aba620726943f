package provider

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/freenoai/authd/internal/cache"
	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/pkg/idx"
)

type fakeQRCoder struct {
	configured bool
	calls      int
}

func (f *fakeQRCoder) Configured() bool { return f.configured }

func (f *fakeQRCoder) CreateQRCode(_ context.Context, sceneStr string, _ int) (string, error) {
	f.calls++
	return "https://example.com/qr/" + sceneStr, nil
}

func newTestScenes(t *testing.T, ttl time.Duration) (*Scenes, *fakeQRCoder) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mp := &fakeQRCoder{configured: true}
	return NewScenes(mp, cache.New(client, "authd-test", time.Minute, nil), ttl), mp
}

func TestSceneLifecycle(t *testing.T) {
	t.Parallel()

	scenes, mp := newTestScenes(t, time.Minute)
	ctx := context.Background()

	qr, err := scenes.Create(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, mp.calls)
	require.Contains(t, qr.QRURL, qr.SceneStr)
	require.Equal(t, 60, qr.ExpireIn)

	scene, err := scenes.Status(ctx, qr.SceneStr)
	require.NoError(t, err)
	require.Equal(t, domain.ScenePending, scene.Status)

	require.NoError(t, scenes.MarkScanned(ctx, qr.SceneStr, "openid-123"))

	scene, err = scenes.Status(ctx, qr.SceneStr)
	require.NoError(t, err)
	require.Equal(t, domain.SceneScanned, scene.Status)
	require.Equal(t, "openid-123", scene.OpenID)
}

func TestSceneExpiredAfterCachePurge(t *testing.T) {
	t.Parallel()

	scenes, _ := newTestScenes(t, time.Minute)
	ctx := context.Background()

	// An id stamped well in the past stands in for a scene whose cache
	// entry already expired and was evicted.
	old := idx.NewAt(time.Now().Add(-2 * time.Minute))

	scene, err := scenes.Status(ctx, old.String())
	require.NoError(t, err)
	require.Equal(t, domain.SceneExpired, scene.Status)

	require.ErrorIs(t, scenes.MarkScanned(ctx, old.String(), "openid-123"), ErrSceneNotFound)
}

func TestSceneNeverIssued(t *testing.T) {
	t.Parallel()

	scenes, _ := newTestScenes(t, time.Minute)
	ctx := context.Background()

	_, err := scenes.Status(ctx, "not-a-ulid")
	require.ErrorIs(t, err, ErrSceneNotFound)

	// A well-formed id with a fresh timestamp that was never issued is
	// distinguishable from an expired one.
	fresh := idx.New()
	_, err = scenes.Status(ctx, fresh.String())
	require.ErrorIs(t, err, ErrSceneNotFound)
}

func TestSceneCreateUnconfigured(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	scenes := NewScenes(&fakeQRCoder{configured: false}, cache.New(client, "authd-test", time.Minute, nil), 0)

	_, err := scenes.Create(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}
