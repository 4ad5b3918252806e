package flow

// LibraryVersion is the release version of the engine.
const LibraryVersion = "0.1.0"

// Version returns the current version of the gopher-flow engine
func Version() string {
	return LibraryVersion
}
