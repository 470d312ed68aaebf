package server

type HTTPServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
	// Prefix mounts the entity routes, e.g. "/admin".
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// UserHeader carries the identity set by the fronting proxy.
	UserHeader   string `mapstructure:"user_header"   yaml:"user_header"`
	ReadTimeout  string `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
}
