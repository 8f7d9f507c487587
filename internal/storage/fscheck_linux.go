//go:build linux

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// f_type magic numbers of network filesystems, from linux/magic.h.
var linuxNetworkMagic = map[int64]string{
	unix.NFS_SUPER_MAGIC:  "nfs",
	unix.CIFS_SUPER_MAGIC: "cifs",
	unix.SMB_SUPER_MAGIC:  "smbfs",
	unix.SMB2_SUPER_MAGIC: "smb2",
	unix.CEPH_SUPER_MAGIC: "ceph",
	unix.AFS_SUPER_MAGIC:  "afs",
	unix.V9FS_MAGIC:       "9p",
}

func detectFilesystemType(path string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}
	return linuxFilesystemName(int64(st.Type)), nil
}

// linuxFilesystemName names known network types and renders the rest as hex.
func linuxFilesystemName(magic int64) string {
	if name, ok := linuxNetworkMagic[magic]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", magic)
}
