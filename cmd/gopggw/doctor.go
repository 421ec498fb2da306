package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	pggw "github.com/rickchristie/pg-gateway"
	"github.com/rickchristie/pg-gateway/internal/ident"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath)
}

func doctor(w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "gopggw %s\n\n", version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'gopggw doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printConnectionSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check
// results. Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*pggw.ServerConfig, bool) {
	allPassed := true

	config, err := loadServerConfig(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable and parseable (%s): %v", configPath, err))
		return nil, false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable and parseable (%s)", configPath))
	applyEnvOverrides(config)

	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
	}

	if config.Server.APIKey == "" {
		printCheck(w, useColor, false, "server.api_key is set (an empty key rejects every request)")
		allPassed = false
	} else {
		printCheck(w, useColor, true, "server.api_key is set")
	}

	if config.DefaultTarget != "" {
		if ident.IsValidTarget(config.DefaultTarget) {
			printCheck(w, useColor, true, "default_target is a postgres:// URI")
		} else {
			printCheck(w, useColor, false, "default_target is a postgres:// URI")
			allPassed = false
		}
	}

	if config.Query.DefaultTimeoutSeconds <= 0 {
		printCheck(w, useColor, false, "query.default_timeout_seconds is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("query.default_timeout_seconds is > 0 (%d)", config.Query.DefaultTimeoutSeconds))
	}

	if config.Pool.MaxConns <= 0 {
		printCheck(w, useColor, false, "pool.max_conns is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("pool.max_conns is > 0 (%d)", config.Pool.MaxConns))
	}

	regexOK := true
	for i, rule := range config.ErrorPrompts {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("error_prompts[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}
	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	if !config.WritesEnabled {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Note: writes_enabled is false. Every mutating tool will be rejected.")
	}

	return config, allPassed
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printConnectionSnippets prints ready-to-run curl snippets for both HTTP
// surfaces.
func printConnectionSnippets(w io.Writer, useColor bool, config *pggw.ServerConfig) {
	port := config.Server.Port

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	heading("Connection Snippets")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Open an event stream (keep-alive pings every %ds):\n\n", config.Server.KeepAliveSeconds)
	fmt.Fprintf(w, "    curl -N -H 'Authorization: Bearer $API_KEY' http://localhost:%d%s\n\n", port, pggw.StreamPath)

	fmt.Fprintf(w, "  List the available tools:\n\n")
	fmt.Fprintf(w, "    curl -H 'Authorization: Bearer $API_KEY' -d '{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"tools/list\"}' http://localhost:%d%s\n\n", port, pggw.RPCPath)

	fmt.Fprintf(w, "  Run a query (replace the session id with the one from the connected event):\n\n")
	fmt.Fprintf(w, "    curl -H 'Authorization: Bearer $API_KEY' -d '{\"jsonrpc\":\"2.0\",\"id\":2,\"method\":\"tools/call\",\"params\":{\"name\":\"query\",\"arguments\":{\"sql\":\"SELECT 1\"}}}' 'http://localhost:%d%s?session_id=SESSION_ID'\n", port, pggw.RPCPath)
}
