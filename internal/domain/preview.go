package domain

import (
	"path"
	"time"
)

type PreviewID string

type Preview struct {
	ID        PreviewID `json:"id"`
	Locator   string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func PreviewLocator(id PreviewID) string {
	return path.Join("previews", string(id), "preview"+PackageExt)
}
