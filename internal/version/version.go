package version

// Version is the current version of the Connectly binaries.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/Kunal-Gupta28/Connectly/internal/version.Version=v1.0.0'"
var Version = "dev"
