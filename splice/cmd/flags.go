package cmd

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PatchLens/go-callsite-splice/splice"
)

// CustomFlag defines a custom CLI option.
type CustomFlag struct {
	Name         string
	DefaultValue any
	Usage        string
	Type         string // "string", "int", "bool"
}

// ParseFlags builds Config from standard and custom flags. Positional arguments are added as target files.
func ParseFlags(customFlags []CustomFlag) (*splice.Config, error) {
	config := &splice.Config{CustomFlags: make(map[string]string)}

	// Define all standard flags
	filesFlag := flag.String("files", "", "Comma separated source files to patch")
	profileFile := flag.String("profile", "", "YAML or TOML profile with markers, helper and unit table (default: tool server profile)")
	stateDir := flag.String("state", "", "Snapshot directory used for undo (default: user cache dir, 'none' to disable)")
	dryRun := flag.Bool("dryrun", false, "Print the diff without writing files")
	check := flag.Bool("check", false, "Exit with an error if any file would change")
	showDiff := flag.Bool("diff", false, "Print a unified diff of every written change")
	noColor := flag.Bool("nocolor", false, "Disable colored diff output")
	cacheMB := flag.Int("cachemb", 32, "Snapshot store memory budget in MB")
	debugStorage := flag.Bool("debugstorage", false, "Log snapshot store diagnostics and cache metrics")

	// Define custom flags
	customPtrs := make(map[string]any)
	for _, cf := range customFlags {
		switch cf.Type {
		case "string":
			customPtrs[cf.Name] = flag.String(cf.Name, cf.DefaultValue.(string), cf.Usage)
		case "int":
			customPtrs[cf.Name] = flag.Int(cf.Name, cf.DefaultValue.(int), cf.Usage)
		case "bool":
			customPtrs[cf.Name] = flag.Bool(cf.Name, cf.DefaultValue.(bool), cf.Usage)
		}
	}

	flag.Parse()

	files := *filesFlag
	if args := flag.Args(); len(args) > 0 {
		if files != "" {
			files += ","
		}
		files += strings.Join(args, ",")
	}
	// an empty file list is rejected by Config.Prepare, restore accepts it to mean every snapshot
	if *dryRun && *check {
		return nil, errors.New("-dryrun and -check are mutually exclusive")
	}

	// Populate config
	config.FilesFlag = files
	config.ProfileFile = *profileFile
	config.StateDir = *stateDir
	config.DryRun = *dryRun
	config.Check = *check
	config.ShowDiff = *showDiff
	config.NoColor = *noColor
	config.CacheMB = *cacheMB
	config.DebugStorage = *debugStorage

	// Populate custom flags - convert all to strings for ease of use
	for name, ptr := range customPtrs {
		switch v := ptr.(type) {
		case *string:
			config.CustomFlags[name] = *v
		case *int:
			config.CustomFlags[name] = strconv.Itoa(*v)
		case *bool:
			config.CustomFlags[name] = strconv.FormatBool(*v)
		}
	}

	if err := setupEnvironment(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setupEnvironment(c *splice.Config) error {
	switch c.StateDir {
	case "none":
		c.StateDir = ""
	case "":
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return errors.New("no user cache directory available, set -state or use -state none")
		}
		c.StateDir = filepath.Join(cacheDir, "callsplice")
	}
	return nil
}
