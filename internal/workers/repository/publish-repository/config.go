// internal/workers/repository/publish-repository/config.go
package publishrepository

import (
	"app-deployer/internal/common/config"
)

type Config struct {
	Token        string
	Owner        string
	Org          string
	Branch       string
	Private      bool
	PagesDomain  string
	GitUserName  string
	GitUserEmail string
}

func LoadConfig(cfg *config.Config) *Config {
	gh := cfg.GitHub
	return &Config{
		Token:        gh.Token,
		Owner:        gh.Owner,
		Org:          gh.Org,
		Branch:       gh.Branch,
		Private:      gh.Private,
		PagesDomain:  gh.PagesDomain,
		GitUserName:  gh.GitUserName,
		GitUserEmail: gh.GitUserEmail,
	}
}
