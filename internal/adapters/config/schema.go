package config

// Knitfile represents the structure of the knit.yaml configuration file.
type Knitfile struct {
	Version   string       `yaml:"version"`
	Output    string       `yaml:"output"`
	Cache     CacheDTO     `yaml:"cache"`
	Fetch     FetchDTO     `yaml:"fetch"`
	Optimizer OptimizerDTO `yaml:"optimizer"`
}

// CacheDTO configures the remote module cache.
type CacheDTO struct {
	Dir     string `yaml:"dir"`
	Enabled *bool  `yaml:"enabled"`
}

// FetchDTO configures module retrieval.
type FetchDTO struct {
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"`
	Retries     *int   `yaml:"retries"`
	UserAgent   string `yaml:"user_agent"`
}

// OptimizerDTO configures the external optimizer stage.
type OptimizerDTO struct {
	Enabled *bool    `yaml:"enabled"`
	Command []string `yaml:"command"`
}
