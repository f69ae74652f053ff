package ports

// FlowLoader defines how flow definitions are retrieved.
// This allows the storage layer (files, memory, embedded) to be decoupled from the compiler.
type FlowLoader interface {
	// GetFlow retrieves the raw definition of a flow by name.
	// It returns the raw bytes (which the compiler will parse) or an error.
	GetFlow(name string) ([]byte, error)

	// ListFlows returns the names of all flows available.
	// This is used by tools such as 'parlance graph' and 'parlance validate'.
	ListFlows() ([]string, error)
}
