package version

// Version is stamped by the build; defaults to a development marker.
var Version = "dev"
