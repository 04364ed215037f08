package fsx

// Names and layout constants for the patch bundle and target-directory
// conventions, shared across the archive, validate, backup, engine, create,
// and runner packages.
const (
	ManifestName = "manifest.json"
	DiffsDir     = "diffs"
	FilesDir     = "files"
	AssetsDir    = "assets"
	IconAsset    = "assets/icon.png"

	// BackupDirName is the fixed subdirectory of the target directory that
	// holds the pre-apply mirror of mutated files.
	BackupDirName = ".patch-backup"

	// SelfAppendMagic is the trailing 8-byte marker of the self-append
	// envelope described in spec.md §4.13.
	SelfAppendMagic = "GRAFTPCH"
)
