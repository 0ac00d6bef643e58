package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// mergeList accumulates one exclusion list across the configuration layers
// (file, then environment, then CLI) and removes entries named by the
// corresponding include options. Environment values are whitespace-separated.
func mergeList(file []string, env string, cli []string, includeEnv string, includeCli []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(items ...string) {
		for _, item := range items {
			item = strings.TrimSpace(item)
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	for _, item := range file {
		add(strings.Fields(item)...)
	}
	add(strings.Fields(env)...)
	add(cli...)

	drop := make(map[string]bool)
	for _, item := range strings.Fields(includeEnv) {
		drop[item] = true
	}
	for _, item := range includeCli {
		drop[item] = true
	}
	if len(drop) == 0 {
		return out
	}
	kept := out[:0]
	for _, item := range out {
		if !drop[item] {
			kept = append(kept, item)
		}
	}
	return kept
}

func stringArray(flags *pflag.FlagSet, name string) []string {
	if flags.Lookup(name) == nil {
		return nil
	}
	values, err := flags.GetStringArray(name)
	if err != nil {
		return nil
	}
	return values
}
