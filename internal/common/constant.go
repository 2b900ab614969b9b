package common

// DefaultExtension is the output format used when a render key carries no
// explicit extension.
const DefaultExtension = "txt"
