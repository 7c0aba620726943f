package domain

// SceneStatus is the lifecycle of a WeChat QR login scene. Pending until the
// user scans the code in their client, then Scanned; Expired is terminal and
// authoritative even after the cache entry is gone.
type SceneStatus string

const (
	ScenePending SceneStatus = "PENDING"
	SceneScanned SceneStatus = "SCANNED"
	SceneExpired SceneStatus = "EXPIRED"
)

// Scene is the cached state of one QR login attempt, keyed by scene ID.
type Scene struct {
	Status SceneStatus `json:"status"`
	OpenID string      `json:"openId,omitempty"`
}

// QRCode is returned to the browser to render the scannable login code.
type QRCode struct {
	QRURL    string `json:"qrUrl"`
	SceneStr string `json:"sceneStr"`
	ExpireIn int    `json:"expireIn"` // seconds
}
