package types

// Version is embedded at build time via -ldflags
var Version = "dev"

// SupportedHost is the only git hosting service this tool knows how to drive
const SupportedHost = "github.com"
