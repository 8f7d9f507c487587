package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckFilesystem(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dbPath := filepath.Join(root, "nested", "dir", "notifyd.db")

	tests := []struct {
		name    string
		fsType  string
		detErr  error
		wantErr string
	}{
		{name: "local ext4", fsType: "0xef53"},
		{name: "local apfs", fsType: "apfs"},
		{name: "nfs", fsType: "nfs", wantErr: `network filesystem "nfs"`},
		{name: "cifs", fsType: "cifs", wantErr: "NOTIFYD_STATE_PATH"},
		{name: "detector failure", detErr: errors.New("statfs denied"), wantErr: "detect filesystem"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var inspected string
			err := checkFilesystem(dbPath, func(path string) (string, error) {
				inspected = path
				return tc.fsType, tc.detErr
			})
			if inspected != root {
				t.Fatalf("detector inspected %q, want nearest existing parent %q", inspected, root)
			}
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestNetworkFilesystemErrorNamesConfigKeys(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "notifyd.db")
	for fsType := range networkFilesystems {
		err := checkFilesystem(dbPath, func(string) (string, error) { return strings.ToUpper(fsType), nil })
		var nfe *NetworkFilesystemError
		if !errors.As(err, &nfe) {
			t.Fatalf("%s: error = %v, want *NetworkFilesystemError", fsType, err)
		}
		if nfe.Path != dbPath {
			t.Errorf("%s: Path = %q, want %q", fsType, nfe.Path, dbPath)
		}
		for _, key := range []string{"state.path", "NOTIFYD_STATE_PATH"} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("%s: error %q does not name %s", fsType, err, key)
			}
		}
	}
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fs   string
		want bool
	}{
		{"nfs", true},
		{" SMBFS ", true},
		{"webdav", true},
		{"ceph", true},
		{"9p", true},
		{"apfs", false},
		{"0x6969", false},
	}
	for _, tc := range cases {
		if got := isNetworkFilesystem(tc.fs); got != tc.want {
			t.Errorf("isNetworkFilesystem(%q)=%v, want %v", tc.fs, got, tc.want)
		}
	}
}
