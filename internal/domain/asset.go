package domain

import "time"

// AssetRole distinguishes the artifacts a run can leave behind.
type AssetRole string

const (
	// AssetRoleSource is the media uploaded by the caller.
	AssetRoleSource AssetRole = "source"
	// AssetRoleFrame is the cleaned reference frame of a video run.
	AssetRoleFrame AssetRole = "frame"
	// AssetRoleCleaned is the final cleaned artifact.
	AssetRoleCleaned AssetRole = "cleaned"
)

// Asset is a stored artifact belonging to a cleaning run.
type Asset struct {
	ID         string
	RunID      string
	Kind       MediaKind
	Role       AssetRole
	StorageKey string
	MIME       string
	Bytes      int64
	Width      int
	Height     int
	CreatedAt  time.Time
}
