package schema

// Schema versions understood by this build. Each value after VersionP is a
// migration boundary; the ordering of the constants is the application order.
const (
	// VersionP is the oldest layout that can be upgraded in place.
	VersionP = 900

	VersionOwnerPackage   = 1000
	VersionColorSpaces    = 1001
	VersionHashAndPending = 1002
	VersionDownloadInfo   = 1003
	VersionAudiobook      = 1004
	VersionRelativePath   = 1005
	VersionVolumeName     = 1006
	VersionLookupIndexes  = 1007

	// VersionQ is the current layout.
	VersionQ = VersionLookupIndexes

	// Latest is the newest version Build can describe.
	Latest = VersionQ

	// MinUpgradeVersion is the oldest stored version that is migrated
	// stepwise. Anything older is rebuilt from pristine.
	MinUpgradeVersion = VersionP
)

// Supported reports whether Build can describe the given version.
func Supported(version int) bool {
	return version >= VersionP && version <= Latest
}
