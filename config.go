package main

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PIVX-Labs/pivx-shield/internal/cfgutil"
	"github.com/PIVX-Labs/pivx-shield/wallet"
	"github.com/abesuite/abec/abelog"
	"github.com/abesuite/abec/abeutil"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "shieldwallet.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "shieldwallet.log"
	defaultEngineURL      = "ws://127.0.0.1:8765"
	defaultCallTimeout    = 5 * time.Minute
	defaultRPCTimeout     = 10 * time.Minute
	defaultSaveInterval   = 10 * time.Minute
	walletDbName          = "wallet.db"
)

var (
	defaultAppDataDir = abeutil.AppDataDir("shieldwallet", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
	defaultBirthday   = int32(0)
)

type config struct {
	// General application behavior
	ConfigFile   *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion  bool                    `short:"V" long:"version" description:"Display version information and exit"`
	Create       bool                    `long:"create" description:"Create the wallet if it does not exist"`
	AppDataDir   *cfgutil.ExplicitString `short:"A" long:"appdata" description:"Application data directory for wallet config, databases and logs"`
	TestNet      bool                    `long:"testnet" description:"Use the test network"`
	Birthday     int32                   `long:"birthday" description:"Birthday height offered when creating a wallet"`
	Account      uint32                  `long:"account" description:"Account derived from the seed when creating a wallet"`
	LogDir       string                  `long:"logdir" description:"Directory to log output."`
	DebugLevel   string                  `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	SaveInterval time.Duration           `long:"saveinterval" description:"Interval between wallet snapshots written to the database (0 to save on shutdown only)"`

	// Engine connection options
	EngineURL   string        `long:"engineurl" description:"Websocket URL of the shielded engine"`
	EngineGRPC  string        `long:"enginegrpc" description:"host:port of a shielded engine served over gRPC, used instead of engineurl"`
	Proxy       string        `long:"proxy" description:"Connect to the engine via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser   string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass   string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	CallTimeout time.Duration `long:"calltimeout" description:"Time an engine call may stay unanswered (0 to disable)"`
	ProverURL   string        `long:"proverurl" description:"URL the proving parameters are downloaded from"`
	NoProver    bool          `long:"noprover" description:"Do not load the proving parameters at startup"`

	// RPC server options
	RPCListen  []string      `long:"rpclisten" description:"Listen for RPC connections on this interface/port (may be given multiple times)"`
	RPCUser    string        `short:"u" long:"rpcuser" description:"Username for RPC connections"`
	RPCPass    string        `short:"P" long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	RPCTimeout time.Duration `long:"rpctimeout" description:"Time a single RPC request may run (0 to disable)"`
}

// netParams holds the parameters that differ between networks.
type netParams struct {
	Name     string
	CoinType uint32
	RPCPort  string
}

var (
	mainNetParams = netParams{
		Name:     "mainnet",
		CoinType: wallet.MainnetCoinType,
		RPCPort:  "8090",
	}
	testNetParams = netParams{
		Name:     "testnet",
		CoinType: wallet.TestnetCoinType,
		RPCPort:  "18090",
	}

	activeNet = &mainNetParams
)

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if os.PathSeparator == '/' {
		pathSeparators = "/"
	} else {
		pathSeparators = string(os.PathSeparator) + "/"
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := abelog.LevelFromString(logLevel)
	return ok
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
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
// The above results in the wallet functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		DebugLevel:   defaultLogLevel,
		ConfigFile:   cfgutil.NewExplicitString(defaultConfigFile),
		AppDataDir:   cfgutil.NewExplicitString(defaultAppDataDir),
		LogDir:       defaultLogDir,
		Birthday:     defaultBirthday,
		SaveInterval: defaultSaveInterval,
		EngineURL:    defaultEngineURL,
		CallTimeout:  defaultCallTimeout,
		RPCTimeout:   defaultRPCTimeout,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	funcName := "loadConfig"
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := preCfg.ConfigFile.Value
	if preCfg.ConfigFile.ExplicitlySet() {
		configFilePath = cleanAndExpandPath(configFilePath)
	} else {
		appDataDir := preCfg.AppDataDir.Value
		if appDataDir != defaultAppDataDir {
			configFilePath = filepath.Join(appDataDir, defaultConfigFilename)
		}
	}
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// If an alternate data directory was specified, and paths with defaults
	// relative to the data dir are unchanged, modify each path to be
	// relative to the new data dir.
	if cfg.AppDataDir.ExplicitlySet() {
		cfg.AppDataDir.Value = cleanAndExpandPath(cfg.AppDataDir.Value)
		if cfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cfg.AppDataDir.Value, defaultLogDirname)
		}
	}

	if cfg.TestNet {
		activeNet = &testNetParams
	}

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, activeNet.Name)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	if cfg.Birthday < 0 {
		err := fmt.Errorf("%s: the birthday height may not be negative",
			funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.EngineGRPC != "" {
		cfg.EngineGRPC, err = cfgutil.NormalizeAddress(cfg.EngineGRPC,
			"8766")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid engine gRPC address: %v\n",
				err)
			return nil, nil, err
		}
	}
	if cfg.Proxy != "" {
		_, _, err := net.SplitHostPort(cfg.Proxy)
		if err != nil {
			str := "%s: proxy address '%s' is invalid: %v"
			err := fmt.Errorf(str, funcName, cfg.Proxy, err)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}

	if len(cfg.RPCListen) == 0 {
		cfg.RPCListen = []string{
			net.JoinHostPort("localhost", activeNet.RPCPort),
		}
	}
	cfg.RPCListen, err = cfgutil.NormalizeAddresses(cfg.RPCListen,
		activeNet.RPCPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid RPC listener address: %v\n", err)
		return nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}
