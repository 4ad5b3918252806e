package main

import (
	"errors"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/seuros/gopher-flow/src/flow"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "run":
		err = runCommand(args)
	case "lint":
		err = lintCommand(args)
	case "inspect":
		err = inspectCommand(args)
	case "version", "--version", "-v":
		err = versionCommand()
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.Error() != "" {
				fmt.Fprintln(os.Stderr, exitErr.Error())
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func printUsage() {
	fmt.Println("flowq - dataflow pipeline tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  flowq run [flags] [file]        - Execute a pipeline over JSON-lines inputs")
	fmt.Println("  flowq lint <file>               - Validate pipeline syntax")
	fmt.Println("  flowq inspect <file>            - Inspect pipeline structure")
	fmt.Println("  flowq version                   - Show version information")
	fmt.Println()
	fmt.Println("Run flags:")
	fmt.Println("  --pipeline <name>               - Built-in pipeline: word_count|tf_idf|pmi|average_speed")
	fmt.Println("  --bind key=path                 - Bind a source key to a JSON-lines file (repeatable)")
	fmt.Println("  --out <path>                    - Output file (default: stdout)")
	fmt.Println("  --lenient                       - Attempt to repair malformed JSON lines")
	fmt.Println("  --verbose                       - Informational logging (or set FLOWQ_LOG_LEVEL)")
	fmt.Println("  --trace                         - Emit OpenTelemetry traces to stderr and metrics to stdout (or set FLOWQ_TRACE)")
}

func versionCommand() error {
	fmt.Printf("flowq version %s\n", flow.Version())
	return nil
}

// exitCodeFor maps engine errors onto the tool's exit code contract:
// 2 for configuration, 3 for decode/encode, 4 for operator and schema
// failures at run time.
func exitCodeFor(err error) int {
	var (
		configErr   *flow.ConfigurationError
		decodeErr   *flow.DecodeError
		encodeErr   *flow.EncodeError
		operatorErr *flow.OperatorError
		schemaErr   *flow.SchemaError
	)
	switch {
	case errors.As(err, &configErr):
		return 2
	case errors.As(err, &decodeErr), errors.As(err, &encodeErr):
		return 3
	case errors.As(err, &operatorErr), errors.As(err, &schemaErr):
		return 4
	default:
		return 1
	}
}
