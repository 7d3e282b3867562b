package ir

// Version constants for the IR schema and the translator.
const (
	// IRVersion is the IR schema version stored next to every saved record.
	IRVersion = "1"

	// ReaderVersion is the translator version stamped into provenance.
	ReaderVersion = "0.3.0"
)
