package compilation

import "errors"

// Sentinel errors returned by Tiers.
var (
	// ErrManifestInvalid is returned when a manifest read back from L2 or L3
	// fails schema validation; the cache treats this as a miss rather than
	// handing back a malformed manifest.
	ErrManifestInvalid = errors.New("compilation: manifest failed schema validation")

	// ErrStaleManifest names a manifest whose recorded source file
	// timestamps no longer match the files on disk. Tiers counts such a
	// manifest in StaleManifests and treats it as a miss; it does not
	// return this error.
	ErrStaleManifest = errors.New("compilation: manifest is stale")

	// ErrNoReconstructFunc names an L2 or L3 manifest hit with no
	// ReconstructFunc configured to rebuild the Compilation from it. Tiers
	// treats such a hit as a miss; it does not return this error.
	ErrNoReconstructFunc = errors.New("compilation: no reconstruct function configured")
)
