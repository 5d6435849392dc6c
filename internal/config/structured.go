package config

import (
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// readStructured reads a JSON, YAML or TOML document whose top-level keys are
// the legacy key names. Values are flattened to strings so both file forms
// share one parsing and validation path.
func readStructured(path string) ([]keyValue, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	keys := v.AllKeys()
	sort.Strings(keys)
	values := make([]keyValue, 0, len(keys))
	for _, k := range keys {
		value := v.GetString(k)
		if k == "vna_args" {
			value = strings.Join(v.GetStringSlice(k), " ")
		}
		values = append(values, keyValue{key: k, value: strings.TrimSpace(value)})
	}
	return values, nil
}
