package config

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("local" or "gcs").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for object store operations.
	CredentialsFile string `yaml:"credentials_file"` // Path to a service account key file for GCS.
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
}

// ConnectionsConfig holds a map of named storage configurations.
type ConnectionsConfig map[string]StorageConfig
