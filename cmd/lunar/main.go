// cmd/lunar/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"lunar/internal/module"
	"lunar/internal/vm"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "--version", "version":
		fmt.Printf("lunar %s\n", version)
		return
	}

	var (
		filename   string
		configPath = "lunar.toml"
		dump       bool
		dumpEnv    bool
		verbosity  int
		rest       []string
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-dump":
			dump = true
		case "-env":
			dumpEnv = true
		case "-v":
			verbosity = 1
		case "-vv":
			verbosity = 2
		case "-config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		default:
			if filename == "" && strings.HasSuffix(args[i], ".luab") {
				filename = args[i]
			} else {
				rest = append(rest, args[i])
			}
		}
	}

	if filename == "" {
		fmt.Fprintln(os.Stderr, "lunar: no .luab file given")
		showUsage()
		os.Exit(1)
	}

	commonlog.Configure(verbosity, nil)
	logger := commonlog.GetLogger("lunar")

	data, err := os.ReadFile(filename)
	if err != nil {
		fatal(logger, "cannot read %s: %v", filename, err)
	}

	settings := vm.DefaultSettings()
	settings.Logger = logger
	if _, statErr := os.Stat(configPath); statErr == nil {
		if err := vm.LoadConfigFile(configPath, settings); err != nil {
			fatal(logger, "%v", err)
		}
	}

	if dump {
		mod, err := module.Load(data, nil)
		if err != nil {
			fatal(logger, "%v", err)
		}
		fmt.Print(module.DisassembleModule(mod))
		return
	}

	env := module.NewTable(0)
	entry, closeVM, err := vm.Load(data, env, settings)
	if err != nil {
		fatal(logger, "%v", err)
	}
	defer closeVM()

	callArgs := make([]module.Value, len(rest))
	for i, a := range rest {
		if n, err := strconv.ParseFloat(a, 64); err == nil {
			callArgs[i] = module.Number(n)
		} else {
			callArgs[i] = module.String(a)
		}
	}

	results, err := entry(callArgs...)
	if err != nil {
		fatal(logger, "%v", err)
	}

	printResults(results)

	if dumpEnv {
		fmt.Print(module.DumpGlobals(env))
	}
}

func printResults(results []module.Value) {
	colored := isatty.IsTerminal(os.Stdout.Fd())
	for _, r := range results {
		if colored {
			fmt.Printf("\x1b[36m%s\x1b[0m\n", r.String())
		} else {
			fmt.Println(r.String())
		}
	}
}

func fatal(logger commonlog.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Errorf(format, args...)
	}
	fmt.Fprintf(os.Stderr, "lunar: "+format+"\n", args...)
	os.Exit(1)
}

func showUsage() {
	fmt.Println("lunar - bytecode interpreter harness")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lunar <file.luab> [args...]   Run a compiled module")
	fmt.Println("  lunar -dump <file.luab>       Disassemble instead of running")
	fmt.Println("  lunar -env <file.luab>        Print global table entries set by the run")
	fmt.Println("  lunar -config <path> ...      Use a specific lunar.toml")
	fmt.Println("  lunar -v | -vv <file.luab>    Raise log verbosity")
	fmt.Println("  lunar --version               Print the driver version")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  lunar script.luab")
	fmt.Println("  lunar -dump script.luab")
	fmt.Println("  lunar script.luab 1 2 hello")
}
