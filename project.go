package adhunik

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default project layout. Paths are relative to the project root.
const (
	DefaultComposeFile   = "docker-compose.yml"
	DefaultMigrationsDir = "db/migrations"
	DefaultBackendEnv    = "backend/.env"
	DefaultFrontendEnv   = "frontend/.env"
	DefaultClientDir     = "frontend/dist"
)

// Project describes the on-disk layout of an adhunik project, loaded from an
// optional `adhunik.yaml` at the project root. Every field has a default, so
// a project without the file still works.
type Project struct {
	Root          string   `mapstructure:"-"`
	ComposeFile   string   `mapstructure:"compose_file"`
	DataServices  []string `mapstructure:"data_services"`
	MigrationsDir string   `mapstructure:"migrations_dir"`
	BackendEnv    string   `mapstructure:"backend_env"`
	FrontendEnv   string   `mapstructure:"frontend_env"`
	ClientDir     string   `mapstructure:"client_dir"`
	WatchDirs     []string `mapstructure:"watch_dirs"`
	ServeCommand  []string `mapstructure:"serve_command"`
}

// LoadProject reads the project file from root, falling back to defaults
// when the file is absent.
func LoadProject(root string) (*Project, error) {
	v := viper.New()
	v.SetConfigName("adhunik")
	v.SetConfigType("yaml")
	v.AddConfigPath(root)

	v.SetDefault("compose_file", DefaultComposeFile)
	v.SetDefault("data_services", []string{"db", "cache"})
	v.SetDefault("migrations_dir", DefaultMigrationsDir)
	v.SetDefault("backend_env", DefaultBackendEnv)
	v.SetDefault("frontend_env", DefaultFrontendEnv)
	v.SetDefault("client_dir", DefaultClientDir)
	v.SetDefault("watch_dirs", []string{"cmd", "internal", "db"})
	v.SetDefault("serve_command", []string{"go", "run", "./cmd/adhunik", "serve"})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading project file: %w", err)
		}
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("unmarshalling project file: %w", err)
	}
	p.Root = root

	return &p, nil
}

// Path resolves a project-relative path against the project root.
func (p *Project) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, rel)
}
