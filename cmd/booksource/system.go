package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pevans/booksource/config"
	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/jsoup"
	"github.com/pevans/booksource/library"
	"github.com/pevans/booksource/rule"
	"github.com/pevans/booksource/sources"
)

// settings is the resolved CLI configuration.
type settings struct {
	SourcesDSN string
	LibraryDir string
	Target     rule.Format
	Options    converter.Options
}

// loadSettings resolves configuration with precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file (~/.booksource/config.yaml)
// 3. Conversion defaults stored in the sources database
// 4. Default values (lowest priority)
func loadSettings() settings {
	defaults := config.DefaultConfig()
	s := settings{
		SourcesDSN: "sources.db",
		LibraryDir: "library",
		Target:     defaults.DefaultTarget,
		Options:    defaults.Options(),
	}

	cfg, err := config.LoadConfigFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		fmt.Fprintf(os.Stderr, "Continuing with defaults and environment variables...\n\n")
	}

	if cfg != nil {
		if cfg.Storage.Sources.DSN != "" {
			s.SourcesDSN = cfg.Storage.Sources.DSN
		}
		if cfg.Storage.Library.DSN != "" {
			s.LibraryDir = cfg.Storage.Library.DSN
		}
	}
	if val := os.Getenv("BOOKSOURCE_SOURCES_DSN"); val != "" {
		s.SourcesDSN = val
	}
	if val := os.Getenv("BOOKSOURCE_LIBRARY_DIR"); val != "" {
		s.LibraryDir = val
	}

	// Stored defaults only apply when the database already exists; the CLI
	// never creates it implicitly.
	if _, err := os.Stat(s.SourcesDSN); err == nil {
		if store, err := config.NewConfigStore(s.SourcesDSN); err == nil {
			if stored, err := store.GetConfig(); err == nil {
				s.Target = stored.DefaultTarget
				s.Options = stored.Options()
			}
			store.Close()
		}
	}

	if cfg != nil {
		applyConversion(&s, cfg.Conversion.Target, cfg.Conversion.JsoupTarget, cfg.Conversion.PreserveOriginal, cfg.Conversion.Strict)
	}
	applyConversion(&s,
		os.Getenv("BOOKSOURCE_TARGET"),
		os.Getenv("BOOKSOURCE_JSOUP_TARGET"),
		envBool("BOOKSOURCE_PRESERVE"),
		envBool("BOOKSOURCE_STRICT"),
	)

	return s
}

func applyConversion(s *settings, target, jsoupTarget string, preserve, strict *bool) {
	if target != "" {
		if f, err := rule.ParseFormat(target); err == nil {
			s.Target = f
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring unknown target %q\n", target)
		}
	}
	switch jsoup.Target(jsoupTarget) {
	case jsoup.TargetCSS, jsoup.TargetXPath:
		s.Options.JsoupTarget = jsoup.Target(jsoupTarget)
	case "":
	default:
		fmt.Fprintf(os.Stderr, "Warning: ignoring unknown jsoup target %q\n", jsoupTarget)
	}
	if preserve != nil {
		s.Options.PreserveOriginal = *preserve
	}
	if strict != nil {
		s.Options.Strict = *strict
	}
}

// envBool returns nil when the variable is unset or not a boolean.
func envBool(key string) *bool {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}
	return &b
}

func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.Parse(args)

	fmt.Println("Initializing booksource storage...")
	fmt.Println()

	initSucceeded := true

	// Create default config file as the first step
	configPath, created, err := config.WriteDefaultConfigFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Failed to create config file: %v\n", err)
		initSucceeded = false
	} else if created {
		fmt.Printf("  ✓ Config file: %s\n", configPath)
	} else {
		fmt.Printf("  Config file: %s (already exists)\n", configPath)
	}

	// Resolve storage paths after the config file exists so the new
	// absolute paths are used
	s := loadSettings()

	if dir := filepath.Dir(s.SourcesDSN); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Failed to create database directory: %v\n", err)
			initSucceeded = false
		}
	}

	if initSucceeded {
		store, err := sources.NewSourceStore(s.SourcesDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Failed to initialize sources database: %v\n", err)
			initSucceeded = false
		} else {
			store.Close()
			fmt.Printf("  ✓ Sources database: %s\n", s.SourcesDSN)
		}
	}

	// Initialize config table in the sources database
	if initSucceeded {
		configStore, err := config.NewConfigStore(s.SourcesDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Failed to initialize config table: %v\n", err)
			initSucceeded = false
		} else {
			configStore.Close()
		}
	}

	if _, err := library.New(s.LibraryDir); err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Failed to create library directory: %v\n", err)
		initSucceeded = false
	} else {
		fmt.Printf("  ✓ Library: %s\n", s.LibraryDir)
	}

	fmt.Println()

	if !initSucceeded {
		fmt.Println("✗ Initialization failed")
		os.Exit(1)
	}

	fmt.Println("✓ Storage initialized successfully")
	fmt.Println()
	fmt.Println("You can now:")
	fmt.Println("  - Import rules with 'booksource sources import <file>'")
	fmt.Println("  - Convert rules with 'booksource convert --to legado <file>'")
}
