package version

// Current is the release version of shzloader.
const Current = "1.0.0"

// String returns the version as printed by the CLI.
func String() string {
	return "shzloader " + Current
}
