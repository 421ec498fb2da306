package main

import (
	"fmt"
	"os"
)

// version is stamped into banners and doctor output.
const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "configure":
		if err := runConfigure(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("gopggw — PostgreSQL tool gateway")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gopggw serve       Start the gateway server")
	fmt.Println("  gopggw configure   Run interactive configuration wizard")
	fmt.Println("  gopggw doctor      Validate configuration and print connection snippets")
	fmt.Println("  gopggw --help      Show this help message")
}
