// Command loom compiles annotated Go packages into dependency-injection
// components: it loads the element model, builds and validates binding
// graphs, and writes generated component implementations.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sghaida/loom/compile"
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/emit"
	"github.com/sghaida/loom/loader"
	"github.com/sghaida/loom/model"
	"github.com/sghaida/loom/option"
)

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("loom", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dir := fs.String("dir", ".", "source directory")
	patterns := fs.String("patterns", "./...", "comma-separated package patterns")
	out := fs.String("out", "", "output directory (default <dir>/loomgen)")
	pkg := fs.String("pkg", "loomgen", "generated package name")
	opts := fs.String("opts", "", "comma-separated loom.* option pairs, e.g. loom.fastInit=true")
	maxRounds := fs.Int("max-rounds", compile.DefaultMaxRounds, "generation round limit")
	verbose := fs.Bool("v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		*out = filepath.Join(*dir, *pkg)
	}

	log, err := newLogger(*verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sink := &diag.Sink{}
	processed := option.Parse(parseOptPairs(*opts), sink)

	l := loader.New(log)
	driver := compile.NewDriver(processed, log).WithMaxRounds(*maxRounds)
	res, err := driver.Run(context.Background(), func(ctx context.Context, _ int) (*model.Universe, error) {
		return l.Load(ctx, *dir, strings.Split(*patterns, ",")...)
	})
	if err != nil {
		return err
	}

	for _, d := range append(sink.All(), res.Diags.All()...) {
		fmt.Fprintf(stderr, "%s: %s\n", d.Severity, d.Message())
	}
	if sink.HasErrors() || res.Diags.HasErrors() {
		return fmt.Errorf("compilation failed")
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	for _, name := range sortedPlanNames(res) {
		files, err := emit.Generate(res.Plans[name], *pkg)
		if err != nil {
			return err
		}
		for _, f := range files {
			path := filepath.Join(*out, f.Name)
			if err := os.WriteFile(path, f.Content, 0o644); err != nil {
				return err
			}
			log.Debug("wrote generated file", zap.String("path", path))
		}
	}
	log.Info("generated components", zap.Int("components", len(res.Plans)), zap.String("out", *out))
	return nil
}

func sortedPlanNames(res *compile.Result) []string {
	names := make([]string, 0, len(res.Plans))
	for name := range res.Plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseOptPairs splits "-opts" into the raw option map option.Parse expects.
func parseOptPairs(s string) map[string]string {
	raw := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if i := strings.IndexByte(pair, '='); i >= 0 {
			raw[pair[:i]] = pair[i+1:]
		} else {
			raw[pair] = "true"
		}
	}
	return raw
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
