package build

const (
	// Version is the current version of the server software, reported in
	// the status-ping JSON document's "version.name" field.
	Version = "1.0.0"

	// ProtocolVersion is the wire-protocol version number this build
	// speaks; it is echoed in the status-ping JSON document and printed by
	// the version command. The handshake does not check a client's
	// protocol version against it.
	ProtocolVersion = 47
)
