// internal/config/config.go
package config

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides: --cadd-file is ANNOVCF_CADD_FILE.
	EnvPrefix = "ANNOVCF"
	// FileFlag names the flag holding an optional config file.
	FileFlag = "config"
)

// Load layers the parsed flags of fs over the environment, an optional config
// file and the flag defaults, in that order of precedence. Config file keys
// are flag names.
func Load(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(FileFlag); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return v, nil
}

// UnknownKeys returns the config file keys that name no flag of fs, sorted.
func UnknownKeys(v *viper.Viper, fs *pflag.FlagSet) []string {
	var out []string
	for _, k := range v.AllKeys() {
		if fs.Lookup(k) == nil {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
