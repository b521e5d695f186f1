package notmain

import (
	"fmt"
	"os"

	"github.com/letsencrypt/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pkitrust/pkitrust/cmd"
	pkiconfig "github.com/pkitrust/pkitrust/config"
)

// Config describes the optional YAML configuration file this subcommand
// accepts via -config, as an alternative to passing every setting on the
// command line. Struct tags are validated with the same
// github.com/letsencrypt/validator/v10 fork the rest of this module's
// registry uses for its ConfigValidators.
type Config struct {
	AnchorsFile   string             `yaml:"anchorsFile" validate:"required"`
	CacheMaxSize  int                `yaml:"cacheMaxSize" validate:"omitempty,gt=0"`
	FetchTimeout  pkiconfig.Duration `yaml:"fetchTimeout"`
	FailOpen      bool               `yaml:"failOpenOnAbstain"`
	AllowIndirect bool               `yaml:"allowIndirectCRLs"`
}

// loadConfig reads and validates a YAML config file, going through the
// *cmd.ConfigValidator this subcommand registered in main.go's init() rather
// than constructing a *Config directly, so the registry's copy-on-lookup
// behavior is the one actually exercised.
func loadConfig(path string) (*Config, error) {
	cv := cmd.LookupConfigValidator("verify")
	if cv == nil {
		return nil, fmt.Errorf("no config validator registered for %q", "verify")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cv.Config); err != nil {
		return nil, err
	}

	v := validator.New()
	for tag, fn := range cv.Validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, err
		}
	}
	if err := v.Struct(cv.Config); err != nil {
		return nil, err
	}

	c, ok := cv.Config.(*Config)
	if !ok {
		return nil, fmt.Errorf("config validator for %q held unexpected type %T", "verify", cv.Config)
	}
	return c, nil
}
