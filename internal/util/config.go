package util

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// GetRebuildOnCorruption returns whether a corrupt database may be deleted
// and recreated. It can be disabled with --no-rebuild-on-corruption.
func GetRebuildOnCorruption() bool {
	return !viper.GetBool("no-rebuild-on-corruption")
}

// GetNetworkOptimized returns whether network pragmas should be applied to
// the database at path. An explicit network-optimized setting wins;
// otherwise the filesystem holding the database is inspected.
func GetNetworkOptimized(path string) bool {
	if viper.IsSet("network-optimized") {
		return viper.GetBool("network-optimized")
	}
	if path == "" || path == ":memory:" {
		return false
	}
	info, err := DetectNetworkFilesystem(filepath.Dir(path))
	if err != nil {
		DebugLog("Network detection failed for %s: %v", path, err)
		return false
	}
	if info.IsNetwork {
		DebugLog("Detected %s network filesystem at %s", info.Protocol, info.MountPath)
	}
	return info.IsNetwork
}
