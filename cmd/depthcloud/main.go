// Command depthcloud records, inspects, converts and indexes depth-cloud
// recordings.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/depthcloud/internal/depthcloud"
	"github.com/banshee-data/depthcloud/internal/fsutil"
	"github.com/banshee-data/depthcloud/internal/version"
)

// fsys is the filesystem recordings are read from and written to.
var fsys fsutil.FileSystem = fsutil.OSFileSystem{}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	if os.Getenv("DEPTHCLOUD_DEBUG") != "" {
		depthcloud.SetLogWriters(stderr, stderr, nil)
	} else {
		depthcloud.SetLogWriters(stderr, nil, nil)
	}

	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "gen":
		err = handleGen(rest, stdout, stderr)
	case "info":
		err = handleInfo(rest, stdout, stderr)
	case "convert":
		err = handleConvert(rest, stdout, stderr)
	case "index":
		err = handleIndex(rest, stdout, stderr)
	case "hist":
		err = handleHist(rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "depthcloud version %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", command, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `depthcloud - depth frame recording toolkit

Usage: depthcloud <command> [options]

Commands:
  gen        Write a synthetic recording
  info       Summarize one or more recordings
  convert    Re-encode a recording (raw <-> compressed)
  index      Add recordings to the SQLite catalogue, or list it
  hist       Render a depth histogram as .png or .html
  version    Show depthcloud version
  help       Show this help message

Common Flags:
  --mode <raw|compressed>   Encoding of the input recording
  --config <file>           Codec configuration (JSON)

Set DEPTHCLOUD_DEBUG=1 to log per-file diagnostics.`)
}
