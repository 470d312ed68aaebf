package server

type FiltersServerConfig struct {
	AddParam  string `mapstructure:"add_param"  yaml:"add_param"`
	LoadParam string `mapstructure:"load_param" yaml:"load_param"`
	SaveParam string `mapstructure:"save_param" yaml:"save_param"`

	// EntitiesFile is a YAML document declaring the filterable entity types.
	EntitiesFile string `mapstructure:"entities_file" yaml:"entities_file"`
	// Demo registers and migrates the bundled scheduler entities.
	Demo bool `mapstructure:"demo" yaml:"demo"`
	// PageSize limits listing rows, 0 returns all.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}
