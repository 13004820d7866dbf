package internal

// Version is the current release of relaychat.
const Version = "0.1.0"
