package utils

import (
	"os"
	"strings"
)

const (
	StorageProviderGCS  = "gcs"
	StorageProviderNone = "none"
)

// GetStorageProvider selects where uploaded spreadsheets are archived.
// Defaults to "none": archiving is an audit convenience, not a dependency.
func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderNone
	}
	return provider
}
