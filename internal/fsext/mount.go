package fsext

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// networkFilesystems do not reliably give rename(2) its local atomicity
var networkFilesystems = map[string]bool{
	"nfs":        true,
	"nfs4":       true,
	"cifs":       true,
	"smb3":       true,
	"smbfs":      true,
	"fuse.sshfs": true,
	"9p":         true,
}

// Mount looks up the mounted filesystem that contains path.
func Mount(path string) (disk.PartitionStat, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return disk.PartitionStat{}, err
	}

	partitions, err := disk.Partitions(true)
	if err != nil {
		return disk.PartitionStat{}, fmt.Errorf("failed to list mounts: %w", err)
	}

	var best disk.PartitionStat
	found := false
	for _, p := range partitions {
		if !within(abs, p.Mountpoint) {
			continue
		}
		if !found || len(p.Mountpoint) > len(best.Mountpoint) {
			best = p
			found = true
		}
	}
	if !found {
		return disk.PartitionStat{}, fmt.Errorf("no mount found for %s", abs)
	}
	return best, nil
}

// IsNetworkFS reports whether fstype is a network or remote filesystem
func IsNetworkFS(fstype string) bool {
	return networkFilesystems[strings.ToLower(fstype)]
}

func within(path, mountpoint string) bool {
	if mountpoint == "/" {
		return true
	}
	return path == mountpoint || strings.HasPrefix(path, mountpoint+string(filepath.Separator))
}
