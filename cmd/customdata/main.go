// Command customdata checks a JSON, JSONC or YAML payload against a field
// list declared on the command line.
//
//	customdata check --field name:string --field 'age?:numeric' user.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/reoring/customdata"
	"github.com/reoring/customdata/i18n"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `customdata CLI

Usage:
  customdata check [flags] <file|->

Fields are declared as name[?][:type][=default]; a trailing ? marks the
field optional. Types: string, integer, float, bool, numeric, array,
object, or []type for typed arrays.`)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "check":
		return checkCmd(args[1:], stdin, stdout, stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

type report struct {
	Data   map[string]any    `json:"data,omitempty"`
	Key    string            `json:"key,omitempty"`
	Digest string            `json:"digest,omitempty"`
	Issues customdata.Issues `json:"issues,omitempty"`
}

func checkCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		fields   []string
		ignore   []string
		format   string
		lang     string
		collect  bool
		maxDepth int
		verbose  bool
	)
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringArrayVarP(&fields, "field", "f", nil, "field declaration name[?][:type][=default] (repeatable)")
	fs.StringSliceVar(&ignore, "ignore", nil, "fields left out of the identity key")
	fs.StringVar(&format, "format", "", "payload format: json, jsonc or yaml (default: from the file extension)")
	fs.StringVar(&lang, "lang", "en", "message language (en, ja)")
	fs.BoolVar(&collect, "collect", false, "report every failing field instead of stopping at the first")
	fs.IntVar(&maxDepth, "max-depth", customdata.DefaultMaxDepth, "maximum nesting depth")
	fs.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "check: expected exactly one payload path (or - for stdin)")
		return 2
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
	i18n.SetLanguage(lang)

	schema, err := parseSchema(fields)
	if err != nil {
		logger.Error().Err(err).Msg("invalid field declaration")
		return 2
	}
	path := fs.Arg(0)
	payload, err := readPayload(path, format, stdin)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("cannot read payload")
		return 2
	}
	raw, err := payload.Values()
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("cannot decode payload")
		return 1
	}

	ctx := logger.WithContext(context.Background())
	ctx = customdata.WithMaxDepth(ctx, maxDepth)

	var rep report
	var sink func(string, error) error
	if collect {
		sink = func(_ string, err error) error {
			rep.Issues = customdata.AppendIssues(rep.Issues, customdata.ToIssues(err)...)
			return nil
		}
	}
	v, err := customdata.Check(ctx, raw, schema, sink)
	if err != nil {
		rep.Issues = customdata.AppendIssues(rep.Issues, customdata.ToIssues(err)...)
		return writeReport(stdout, rep, 1)
	}
	v.Ignore(ignore...)
	rep.Data = v.ValidatedMap()
	if rep.Key, err = v.Key(); err != nil {
		rep.Issues = customdata.AppendIssues(rep.Issues, customdata.ToIssues(err)...)
	} else if rep.Digest, err = v.Digest(); err != nil {
		logger.Error().Err(err).Msg("digest")
		return 1
	}
	code := 0
	if len(rep.Issues) > 0 {
		code = 1
	}
	return writeReport(stdout, rep, code)
}

func readPayload(path, format string, stdin io.Reader) (customdata.Payload, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch format {
	case "json", "":
		return customdata.JSON(data), nil
	case "jsonc":
		return customdata.JSONC(data), nil
	case "yaml", "yml":
		return customdata.YAML(data), nil
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

func writeReport(w io.Writer, rep report, code int) int {
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		fmt.Fprintln(w, err)
		return 1
	}
	fmt.Fprintln(w, string(out))
	return code
}
