package parlance

// Version is the release of the library and the parlance binary.
// Release builds override it with -ldflags "-X github.com/aretw0/parlance.Version=...".
var Version = "0.1.0-dev"
