package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-authgate/sallyport/internal/bootstrap"
	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/version"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	case "check-config":
		checkConfig()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("OAuth 2.0 / OpenID Connect authorization server with role-based token policy")
	fmt.Println("\nCommands:")
	fmt.Println("  server          Start the authorization server")
	fmt.Println("  check-config    Validate configuration and exit")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	log.Printf("Starting %s", version.String())
	if err := bootstrap.Run(context.Background(), config.Load()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func checkConfig() {
	if err := config.Load().Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration OK")
}
