package schemeconfigs

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/reusee/taischeme/configs"
	"github.com/reusee/taischeme/logs"
)

//go:embed schema.cue
var schema string

var filenames = []string{
	"taischeme.cue",
	".taischeme.cue",
}

// configDirs lists the directories searched for config files, the most
// specific first
func configDirs() []string {
	var dirs []string
	if dir, err := os.Getwd(); err == nil {
		dirs = append(dirs, dir)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	return append(dirs, "/etc")
}

func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {
	var paths []string
	for _, dir := range configDirs() {
		for _, filename := range filenames {
			path := filepath.Join(dir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}
	if len(paths) > 0 {
		logger.Info("config file",
			"paths", paths,
		)
	}
	return configs.NewLoader(paths, schema)
}

// Schema returns the cue schema config files are validated against.
func Schema() string {
	return schema
}
