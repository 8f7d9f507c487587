//go:build !darwin && !linux

package storage

// Detection is unsupported here; report an unknown local type.
func detectFilesystemType(string) (string, error) {
	return "unknown", nil
}
