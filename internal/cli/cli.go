package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/actiongraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Values from --config are used unless the matching flag is set.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("actiongraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
ActionGraph - Evaluate canvases of reflection-bound command chains.

Usage:
  actiongraph [options] [CANVAS_PATH]

Arguments:
  CANVAS_PATH
    Path to a canvas document (.hcl) or a directory of documents. Without it,
    --name is loaded from the store.

Options:
`)
		flagSet.PrintDefaults()
	}

	defaults := app.DefaultConfig()
	configFlag := flagSet.String("config", "", "Path to a YAML config file. Flags override its values.")
	canvasFlag := flagSet.String("canvas", "", "Path to the canvas document.")
	cFlag := flagSet.String("c", "", "Path to the canvas document (shorthand).")
	nameFlag := flagSet.String("name", "", "Canvas name in the store. Required with --save.")
	storeFlag := flagSet.String("store", defaults.Store, "Canvas store. Options: 'file' or 'redis'.")
	storeDirFlag := flagSet.String("store-dir", defaults.StoreDir, "Directory of the file store.")
	redisURLFlag := flagSet.String("redis-url", "", "Redis URL of the redis store, e.g. redis://localhost:6379/0.")
	redisPrefixFlag := flagSet.String("redis-prefix", "", "Key prefix of the redis store.")
	notifyURLFlag := flagSet.String("notify-url", "", "socket.io URL of a live editor to mirror evaluation to.")
	notifyNSFlag := flagSet.String("notify-namespace", "/", "socket.io namespace of the live editor.")
	notifyInsecureFlag := flagSet.Bool("notify-insecure", false, "Skip TLS verification for the live editor.")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	menuDepthFlag := flagSet.Int("menu-depth", defaults.MenuDepth, "Number of chain levels offered by --menu.")
	listCommandsFlag := flagSet.String("list-commands", "", "Print the commands of a registered object or type and exit.")
	menuFlag := flagSet.String("menu", "", "Print the selection menu of a registered object or type and exit.")
	listCanvasesFlag := flagSet.Bool("list-canvases", false, "Print the canvases in the store and exit.")
	saveFlag := flagSet.Bool("save", false, "Write the canvas back to the store after evaluation.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := defaults
	if *configFlag != "" {
		fileCfg, err := app.LoadConfigFile(*configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = *fileCfg
		slog.Debug("Config file loaded.", "path", *configFlag)
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "canvas", "c":
			cfg.CanvasPath = f.Value.String()
		case "name":
			cfg.CanvasName = *nameFlag
		case "store":
			cfg.Store = *storeFlag
		case "store-dir":
			cfg.StoreDir = *storeDirFlag
		case "redis-url":
			cfg.RedisURL = *redisURLFlag
		case "redis-prefix":
			cfg.RedisPrefix = *redisPrefixFlag
		case "notify-url":
			cfg.NotifyURL = *notifyURLFlag
		case "notify-namespace":
			cfg.NotifyNamespace = *notifyNSFlag
		case "notify-insecure":
			cfg.NotifyInsecure = *notifyInsecureFlag
		case "log-format":
			cfg.LogFormat = *logFormatFlag
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		case "menu-depth":
			cfg.MenuDepth = *menuDepthFlag
		case "save":
			cfg.Save = *saveFlag
		}
	})
	cfg.ListCommands = *listCommandsFlag
	cfg.Menu = *menuFlag
	cfg.ListCanvases = *listCanvasesFlag
	if cfg.NotifyNamespace == "" {
		cfg.NotifyNamespace = "/"
	}

	if *canvasFlag == "" && *cFlag == "" && flagSet.NArg() > 0 {
		cfg.CanvasPath = flagSet.Arg(0)
	}
	if cfg.Save && cfg.CanvasName == "" && cfg.CanvasPath != "" {
		cfg.CanvasName = app.DefaultCanvasName(cfg.CanvasPath)
	}
	slog.Debug("Canvas determined.", "path", cfg.CanvasPath, "name", cfg.CanvasName)

	inspecting := cfg.ListCommands != "" || cfg.Menu != "" || cfg.ListCanvases
	if !inspecting && cfg.CanvasPath == "" && cfg.CanvasName == "" {
		slog.Debug("No canvas provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
