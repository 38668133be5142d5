package version

// Version is the Typeline toolchain version, overridden at build time via
// -ldflags "-X github.com/alucardeht/typeline/pkg/version.Version=...".
var Version = "0.3.0-dev"

// Commit is the source revision the binary was built from, if known.
var Commit = ""

func String() string {
	if Commit == "" {
		return Version
	}
	return Version + "+" + Commit
}
