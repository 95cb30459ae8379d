package version

// Version is the current version of videochat.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/krishangoyal12/Video-Chat-Application/internal/version.Version=v1.0.0'"
var Version = "dev"
