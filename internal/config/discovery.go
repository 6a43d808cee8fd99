package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover walks the given workspace roots and builds one Config per located
// runner config file. Hidden directories and DefaultSkipDirs are not entered.
// Files that fail to parse are skipped rather than aborting discovery.
func Discover(roots []string) ([]*Config, error) {
	skip := make(map[string]bool, len(DefaultSkipDirs))
	for _, d := range DefaultSkipDirs {
		skip[d] = true
	}

	var configs []*Config
	for _, root := range roots {
		root = filepath.Clean(root)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				name := d.Name()
				if skip[name] {
					return filepath.SkipDir
				}
				if strings.HasPrefix(name, ".") && name != "." {
					return filepath.SkipDir
				}
				return nil
			}
			if !isConfigName(d.Name()) {
				return nil
			}
			cfg, perr := Parse(root, path)
			if perr != nil {
				return nil
			}
			configs = append(configs, cfg)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].ConfigFile < configs[j].ConfigFile
	})
	return configs, nil
}

func isConfigName(name string) bool {
	if name == DefaultConfigName {
		return true
	}
	ok, err := filepath.Match(DefaultConfigPattern, name)
	return err == nil && ok
}
