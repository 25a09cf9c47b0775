package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/PIVX-Labs/pivx-shield/internal/cfgutil"
	"github.com/abesuite/abec/abeutil"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "shieldctl.conf"
	defaultRPCServer      = "localhost"
	defaultRPCPort        = "8090"
	defaultTestNetRPCPort = "18090"
)

var (
	shieldctlHomeDir  = abeutil.AppDataDir("shieldctl", false)
	defaultConfigFile = filepath.Join(shieldctlHomeDir, defaultConfigFilename)
)

// config defines the configuration options for shieldctl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile   string `short:"C" long:"configfile" description:"Path to configuration file"`
	ListCommands bool   `short:"l" long:"listcommands" description:"List all of the supported commands and exit"`
	RPCUser      string `short:"u" long:"rpcuser" description:"RPC username"`
	RPCPassword  string `short:"P" long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCServer    string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	Proxy        string `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser    string `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass    string `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	TestNet      bool   `long:"testnet" description:"Connect to testnet"`
	ShowVersion  bool   `short:"V" long:"version" description:"Display version information and exit"`
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile: defaultConfigFile,
		RPCServer:  defaultRPCServer,
	}

	// Pre-parse the command line options to see if an alternative config
	// file, the version flag, or the list commands flag was specified.  Any
	// errors aside from the help message error can be ignored here since
	// they will be caught by the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "The special parameter `-` "+
				"indicates that a parameter should be read "+
				"from the\nnext unread line from standard input.")
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show options", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	exists, err := cfgutil.FileExists(preCfg.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if exists {
		err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n",
				err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Add default port to RPC server based on --testnet flag
	// if needed.
	port := defaultRPCPort
	if cfg.TestNet {
		port = defaultTestNetRPCPort
	}
	cfg.RPCServer, err = cfgutil.NormalizeAddress(cfg.RPCServer, port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid RPC server address: %v\n", err)
		return nil, nil, err
	}

	if cfg.Proxy != "" {
		if _, _, err := net.SplitHostPort(cfg.Proxy); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid proxy address: %v\n", err)
			return nil, nil, err
		}
	}

	return &cfg, remainingArgs, nil
}

// version returns the application version.
func version() string {
	return "0.3.0-beta"
}
