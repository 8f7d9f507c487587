package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem names, as reported by detectFilesystemType, that SQLite cannot
// lock reliably.
var networkFilesystems = map[string]struct{}{
	"9p":     {},
	"afpfs":  {},
	"afs":    {},
	"ceph":   {},
	"cifs":   {},
	"nfs":    {},
	"smb2":   {},
	"smbfs":  {},
	"webdav": {},
}

// NetworkFilesystemError is returned by OpenSQLite when the outbox database
// would live on a network mount.
type NetworkFilesystemError struct {
	Path   string
	FSType string
}

func (e *NetworkFilesystemError) Error() string {
	return fmt.Sprintf("outbox database %q is on network filesystem %q; point state.path (env NOTIFYD_STATE_PATH) at a local disk or use :memory:", e.Path, e.FSType)
}

func checkLocalFilesystem(path string) error {
	return checkFilesystem(path, detectFilesystemType)
}

// checkFilesystem inspects the closest existing ancestor of path, since the
// database file and its directories may not exist yet.
func checkFilesystem(path string, detect func(string) (string, error)) error {
	if path == "" {
		return errors.New("sqlite path is empty")
	}
	dir, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}
	fsType, err := detect(dir)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", dir, err)
	}
	if isNetworkFilesystem(fsType) {
		return &NetworkFilesystemError{Path: path, FSType: fsType}
	}
	return nil
}

func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}
		up := filepath.Dir(p)
		if up == p {
			return "", fmt.Errorf("no existing ancestor of %q", path)
		}
		p = up
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, ok := networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return ok
}
