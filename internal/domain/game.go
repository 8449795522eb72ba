package domain

import (
	"errors"
	"path"
	"strings"
	"time"
)

// PackageExt is the only accepted upload extension.
const PackageExt = ".pck"

var ErrBadPackage = errors.New("invalid file")

type GameID string

// GameMetadata is the best-effort document stored next to a game package.
type GameMetadata struct {
	ID        GameID     `json:"id"`
	OwnerID   UserID     `json:"ownerId,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	Size      int64      `json:"size,omitempty"`
	CreatedAt *time.Time `json:"createdAt"`
}

// CheckPackageName rejects anything that is not a .pck file.
func CheckPackageName(filename string) error {
	if !strings.HasSuffix(strings.ToLower(filename), PackageExt) {
		return ErrBadPackage
	}
	return nil
}

// GameLocator is where a game package lives in the content store.
func GameLocator(id GameID) string {
	return path.Join("games", string(id), "game"+PackageExt)
}
