package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for processing.
// Only JPEG has been validated end to end against the dataset; PNG files
// are discovered by the walker but are not accepted at the upload boundary.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
}

// MaxFileSize is the upload size cap in bytes.
const MaxFileSize = 10 * 1024 * 1024

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without leading dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
