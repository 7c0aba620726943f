package provider

import (
	"context"
	"errors"
	"time"

	"github.com/freenoai/authd/internal/cache"
	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/pkg/idx"
)

// DefaultSceneTTL bounds how long a QR login code stays scannable.
const DefaultSceneTTL = 5 * time.Minute

// ErrSceneNotFound reports a scene id that was never issued. An issued
// scene whose lifetime has elapsed is not "not found"; it is Expired.
var ErrSceneNotFound = errors.New("provider: scene not found")

// qrCoder is the one method of the official-account adapter the scene
// flow needs.
type qrCoder interface {
	Configured() bool
	CreateQRCode(ctx context.Context, sceneStr string, expireSeconds int) (string, error)
}

// Scenes runs the two-phase QR login protocol. A scene starts Pending,
// becomes Scanned when the platform callback delivers the open id, and
// is Expired once its TTL elapses. Scene state lives in the cache; the
// scene id itself carries the issue timestamp, so expiry can be decided
// even after the cache entry is purged.
type Scenes struct {
	mp    qrCoder
	cache *cache.Cache
	ttl   time.Duration
}

func NewScenes(mp qrCoder, c *cache.Cache, ttl time.Duration) *Scenes {
	if ttl <= 0 {
		ttl = DefaultSceneTTL
	}
	return &Scenes{mp: mp, cache: c, ttl: ttl}
}

func sceneKey(id idx.ID) string { return "scene:" + id.String() }

// Create registers a fresh QR code with the platform and records the
// scene as Pending.
func (s *Scenes) Create(ctx context.Context) (domain.QRCode, error) {
	if !s.mp.Configured() {
		return domain.QRCode{}, ErrNotConfigured
	}

	id := idx.New()
	qrURL, err := s.mp.CreateQRCode(ctx, id.String(), int(s.ttl.Seconds()))
	if err != nil {
		return domain.QRCode{}, err
	}

	s.cache.Set(ctx, sceneKey(id), domain.Scene{Status: domain.ScenePending}, cache.Options{TTL: s.ttl})

	return domain.QRCode{
		QRURL:    qrURL,
		SceneStr: id.String(),
		ExpireIn: int(s.ttl.Seconds()),
	}, nil
}

// MarkScanned binds the scanning user's open id to the scene. Called
// from the platform callback handler. Marking an expired or unknown
// scene is a no-op failure so a late callback cannot resurrect it.
func (s *Scenes) MarkScanned(ctx context.Context, sceneStr, openID string) error {
	id, err := idx.Parse(sceneStr)
	if err != nil {
		return ErrSceneNotFound
	}

	var scene domain.Scene
	if !s.cache.Get(ctx, sceneKey(id), &scene) || s.expired(id) {
		return ErrSceneNotFound
	}

	scene.Status = domain.SceneScanned
	scene.OpenID = openID
	s.cache.Set(ctx, sceneKey(id), scene, cache.Options{TTL: s.remaining(id)})
	return nil
}

// Status reports the scene's current state. Expiry is decided from the
// timestamp embedded in the scene id, so a purged cache entry for a
// genuinely issued scene still reads Expired rather than not found.
func (s *Scenes) Status(ctx context.Context, sceneStr string) (domain.Scene, error) {
	id, err := idx.Parse(sceneStr)
	if err != nil {
		return domain.Scene{}, ErrSceneNotFound
	}

	var scene domain.Scene
	if s.cache.Get(ctx, sceneKey(id), &scene) {
		if scene.Status == domain.ScenePending && s.expired(id) {
			return domain.Scene{Status: domain.SceneExpired}, nil
		}
		return scene, nil
	}

	if s.expired(id) {
		return domain.Scene{Status: domain.SceneExpired}, nil
	}
	return domain.Scene{}, ErrSceneNotFound
}

func (s *Scenes) expired(id idx.ID) bool {
	return time.Since(id.Time()) >= s.ttl
}

func (s *Scenes) remaining(id idx.ID) time.Duration {
	rem := s.ttl - time.Since(id.Time())
	if rem < time.Second {
		rem = time.Second
	}
	return rem
}
