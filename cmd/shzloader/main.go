package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/spf13/afero"

	"github.com/shpitdev/shz-loader/internal/app"
	"github.com/shpitdev/shz-loader/internal/config"
	"github.com/shpitdev/shz-loader/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], afero.NewOsFs(), os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, fsys afero.Fs, getenv func(string) string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "help", "-h", "--help":
			usage(stdout)
			return 0
		case "version", "--version":
			_, _ = fmt.Fprintln(stdout, version.String())
			return 0
		default:
			_, _ = fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
			usage(stderr)
			return 2
		}
	}

	cfg, err := config.Load(fsys, getenv)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", err)
		return 2
	}

	logger := app.NewLogger(stderr, cfg.LogLevel)
	if err := app.Run(ctx, fsys, cfg, logger); err != nil {
		level.Error(logger).Log("msg", "export failed", "err", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `shzloader: export the star evolution dataset for the front end

Usage:
  shzloader            Run the export configured by the environment
  shzloader help       Show this help
  shzloader version    Print the version

The default run reads shzStars.dat from the working directory and writes
shzStars.js and shzStars.pretty.js. In strip mode it writes shzStars.json.

Environment:
  SHZ_CONFIG          Optional YAML config file, applied before the variables below
  SHZ_MODE            full (default) or strip
  SHZ_INPUT           Compressed dataset path (default shzStars.dat)
  SHZ_OUTPUT          Compact module path (default shzStars.js)
  SHZ_PRETTY_OUTPUT   Indented module path (default shzStars.pretty.js)
  SHZ_STRIP_OUTPUT    Strip-mode JSON path (default shzStars.json)
  SHZ_BINDING         Exported identifier (default shzStarData)
  SHZ_TRACK_FIELD     Key of the parsed track (default track)
  SHZ_RAW_FIELD       Key of the raw track (default rawDataTable)
  SHZ_COMPRESSION     zlib (default), deflate or gzip
  SHZ_ENCODING        auto (default), amf0 or amf3
  SHZ_WORKERS         Stars transformed concurrently (default 1)
  SHZ_LOG_LEVEL       debug, info (default), warn or error

Exit codes: 0 success, 1 export failed, 2 usage or config error.
`)
}
