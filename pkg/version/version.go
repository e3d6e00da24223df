package version

// Version is the release of the rallynav binary.
const Version = "v0.3.1"
