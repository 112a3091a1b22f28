package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "convert":
		handleConvert(loadSettings(), args)
	case "detect":
		handleDetect(args)
	case "validate":
		handleValidate(args)
	case "expr":
		if len(args) < 1 {
			printExprUsage()
			os.Exit(1)
		}
		handleExprCommand(args[0], loadSettings(), args[1:])
	case "schema":
		handleSchema(args)
	case "sources":
		if len(args) < 1 {
			printSourcesUsage()
			os.Exit(1)
		}
		handleSourcesCommand(args[0], loadSettings(), args[1:])
	case "watch":
		handleWatch(loadSettings(), args)
	case "init":
		handleInit(args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("booksource - Book source rule converter")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  booksource <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  convert    Convert rules between any-reader, legado and universal")
	fmt.Println("  detect     Print the format of a rule file")
	fmt.Println("  validate   Check a rule file for missing fields and bad expressions")
	fmt.Println("  expr       Parse, validate or translate a single expression")
	fmt.Println("  schema     Print the universal rule JSON Schema")
	fmt.Println("  sources    Manage the rule library")
	fmt.Println("  watch      Convert rule files as they change")
	fmt.Println("  init       Create the config file and storage")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  BOOKSOURCE_SOURCES_DSN   Path to sources database (default: sources.db)")
	fmt.Println("  BOOKSOURCE_LIBRARY_DIR   Path to the rule file library (default: library)")
	fmt.Println("  BOOKSOURCE_TARGET        Default conversion target (default: universal)")
	fmt.Println("  BOOKSOURCE_JSOUP_TARGET  css or xpath (default: css)")
	fmt.Println("  BOOKSOURCE_PRESERVE      Keep original documents in converted rules")
	fmt.Println("  BOOKSOURCE_STRICT        Fail on invalid expressions")
}
