package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/storefront/internal/catalog"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Watch    bool
	Debounce time.Duration
}

// SeedFile is the YAML layout of a seed file.
type SeedFile struct {
	Products []catalog.Product `yaml:"products"`
}

// SeedResult is the JSON payload of the seed command.
type SeedResult struct {
	File     string `json:"file"`
	Products int    `json:"products"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load products from a YAML file",
		Long: `Upsert every product in a YAML seed file into the configured catalog.

Products keep the ids given in the file, so seeding twice is harmless.
With --watch the file is re-applied whenever it changes.

Example file:
  products:
    - id: mug
      name: Campus Mug
      price: 8
      description: Ceramic, 350ml
      in_stock: true`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-apply the file whenever it changes")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "quiet period before re-applying a changed file")

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)

	products, err := LoadSeedFile(path)
	if err != nil {
		_ = out.Error(ErrCodeInput, "invalid seed file", err.Error())
		return WrapExitError(ExitFailure, "invalid seed file", err)
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer b.Close()

	n, err := ApplySeed(ctx, b.catalog, products)
	if err != nil {
		_ = out.Error(ErrCodeBackend, "seed failed", err.Error())
		return WrapExitError(ExitFailure, "seed failed", err)
	}

	result := SeedResult{File: path, Products: n}
	if err := out.Success(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Seeded %d product(s) from %s\n", n, path)
		return err
	}); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	out.VerboseLog("watching %s", path)
	return WatchSeed(ctx, path, b.catalog, opts.Debounce)
}

// LoadSeedFile reads and validates a seed file. Every product needs an id
// and must pass catalog validation; ids must be unique.
func LoadSeedFile(path string) ([]catalog.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Products))
	out := make([]catalog.Product, 0, len(file.Products))
	for i, p := range file.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("products[%d]: id is required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("products[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true

		fields, err := catalog.Validate(p.Fields())
		if err != nil {
			return nil, fmt.Errorf("products[%d] (%s): %w", i, p.ID, err)
		}
		out = append(out, fields.WithID(p.ID))
	}
	return out, nil
}

// ApplySeed upserts products in file order and returns how many were
// written.
func ApplySeed(ctx context.Context, up catalog.Upserter, products []catalog.Product) (int, error) {
	for i, p := range products {
		if err := up.Upsert(ctx, p); err != nil {
			return i, fmt.Errorf("upsert %s: %w", p.ID, err)
		}
	}
	return len(products), nil
}

// WatchSeed re-applies path after every change, once the file has been
// quiet for debounce. Invalid edits are logged and skipped. Blocks until
// ctx is done.
func WatchSeed(ctx context.Context, path string, up catalog.Upserter, debounce time.Duration) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start file watcher", err)
	}
	defer fsw.Close()

	target := filepath.Clean(path)
	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch seed file", err)
	}
	slog.Info("watching seed file", "path", target)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				slog.Debug("seed file changed", "path", target, "op", event.Op.String())
				timer.Reset(debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)

		case <-timer.C:
			products, err := LoadSeedFile(target)
			if err != nil {
				slog.Warn("seed file rejected", "path", target, "error", err)
				continue
			}
			n, err := ApplySeed(ctx, up, products)
			if err != nil {
				slog.Error("seed failed", "path", target, "error", err)
				continue
			}
			slog.Info("seed re-applied", "path", target, "products", n)
		}
	}
}
