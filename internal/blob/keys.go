package blob

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// StagingKey is where a freshly received upload lands before confirmation.
func StagingKey(uploadID uuid.UUID, filename string) string {
	return path.Join("tmp/uploads", uploadID.String(), sanitizeFilename(filename))
}

// CanonicalKey is the permanent home of a confirmed version's original.
func CanonicalKey(versionID uuid.UUID, filename string) string {
	return path.Join("versions", versionID.String(), sanitizeFilename(filename))
}

// VersionPrefix covers every object belonging to a version.
func VersionPrefix(versionID uuid.UUID) string {
	return "versions/" + versionID.String() + "/"
}

// sanitizeFilename strips path separators and control characters so a
// client-supplied name cannot escape its prefix.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "file"
	}
	return out
}
