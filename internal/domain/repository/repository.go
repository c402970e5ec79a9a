package repository

// SyncRepository is the interface for persisting and managing sync metadata
// and observation data. It embeds the per-aggregate repository interfaces to
// separate concerns.
type SyncRepository interface {
	Site          // Embeds the Site interface (definition in site.go)
	Observation   // Embeds the Observation interface (definition in observation.go)
	Watermark     // Embeds the Watermark interface (definition in watermark.go)
	JobDefinition // Embeds the JobDefinition interface (definition in jobdefinition.go)
	JobExecution  // Embeds the JobExecution interface (definition in execution.go)

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}
