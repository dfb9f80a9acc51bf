package config

// Config represents the core cytobase configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Import   ImportConfig   `mapstructure:"import"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CatalogConfig configures the cell reference catalog.
// The two list paths are optional; when a path is empty or unreadable the
// identity cache loads without that list and logs a warning.
type CatalogConfig struct {
	FeaturedListPath       string `mapstructure:"featured_list_path"`       // lines of name[TAB]cell_id
	DisambiguationListPath string `mapstructure:"disambiguation_list_path"` // lines of raw_identifier[TAB]cell_id
}

// ImportConfig configures default import behavior
type ImportConfig struct {
	BulkLoad bool `mapstructure:"bulk_load"` // stage rows and flush in one batch
}
