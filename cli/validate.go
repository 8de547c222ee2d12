package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/finance-gate/api"
	"github.com/warp/finance-gate/collections"
	"github.com/warp/finance-gate/generic"
	memstore "github.com/warp/finance-gate/generic/store"
	"github.com/warp/finance-gate/store/sqlite"
	"golang.org/x/sync/errgroup"
)

// FileResult is the verdict for one request file.
type FileResult struct {
	File       string `json:"file"`
	Collection string `json:"collection"`
	Key        string `json:"key,omitempty"`
	Accepted   bool   `json:"accepted"`
	Kind       string `json:"kind,omitempty"`
	Field      string `json:"field,omitempty"`
	Error      string `json:"error,omitempty"`
}

type validateFlags struct {
	db            string
	fixtures      string
	now           string
	concurrency   int
	acceptUnknown bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate <request.json>...",
		Short: "Dry-run write attempts from files",
		Long: `Validate write attempts without committing them.

Each file holds one request: {"collection": ..., "key": ..., "proposed": {...},
"previous": {...}}. References are resolved against --db (an existing gate
SQLite database, opened read only and never created or migrated) or,
without it, against the records in --fixtures:
{"<collection>": {"<key>": {...}}}. Files are checked concurrently.

Exit code 0 when every write is accepted, 1 when any is rejected.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.db, "db", "", "existing SQLite database to resolve references against (read only)")
	cmd.Flags().StringVar(&flags.fixtures, "fixtures", "", "JSON file of reference records (ignored with --db)")
	cmd.Flags().StringVar(&flags.now, "now", "", "evaluate as of this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", runtime.NumCPU(), "files validated in parallel")
	cmd.Flags().BoolVar(&flags.acceptUnknown, "accept-unknown", false, "accept collections without rules")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, flags *validateFlags, files []string) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	policy, err := loadPolicy(opts.Policy)
	if err != nil {
		return err
	}
	clock, err := parseClock(flags.now)
	if err != nil {
		return err
	}
	reader, closeReader, err := openReader(flags)
	if err != nil {
		return err
	}
	defer closeReader()

	var dopts []generic.DispatcherOption
	if flags.acceptUnknown {
		dopts = append(dopts, generic.AcceptUnknown())
	}
	d := collections.NewDispatcher(collections.Deps{Reader: reader, Clock: clock, Policy: policy}, dopts...)

	results := make([]FileResult, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	if flags.concurrency > 0 {
		g.SetLimit(flags.concurrency)
	}
	for i, path := range files {
		g.Go(func() error {
			out.VerboseLog("validating %s", path)
			res, err := validateFile(ctx, d, reader, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "validation aborted", err)
	}

	rejected := 0
	for _, r := range results {
		if !r.Accepted {
			rejected++
		}
	}

	if out.Format == "json" {
		if err := out.JSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Accepted {
				out.Printf("PASS %s (%s/%s)\n", r.File, r.Collection, r.Key)
				continue
			}
			out.Printf("FAIL %s (%s/%s): [%s] %s\n", r.File, r.Collection, r.Key, r.Kind, r.Error)
		}
		out.Printf("%d checked, %d rejected\n", len(results), rejected)
	}

	if rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d writes rejected", rejected, len(results)))
	}
	return nil
}

func validateFile(ctx context.Context, v generic.Validator, reader generic.Reader, path string) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	var req api.ValidateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return FileResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if req.Collection == "" || len(req.Proposed) == 0 {
		return FileResult{}, fmt.Errorf("%s: collection and proposed are required", path)
	}

	attempt := generic.WriteAttempt{
		Collection: req.Collection,
		Key:        req.Key,
		Proposed:   req.Proposed,
		Previous:   req.Previous,
	}
	if len(attempt.Previous) == 0 && req.Key != "" {
		prev, err := reader.Get(ctx, req.Collection, req.Key)
		switch {
		case err == nil:
			attempt.Previous = prev.Data
		case generic.IsNotFound(err):
		default:
			return FileResult{}, fmt.Errorf("%s: load previous: %w", path, err)
		}
	}

	res := FileResult{File: path, Collection: req.Collection, Key: req.Key, Accepted: true}
	if err := v.Validate(ctx, attempt); err != nil {
		rej, ok := generic.AsRejection(err)
		if !ok {
			return FileResult{}, fmt.Errorf("%s: %w", path, err)
		}
		res.Accepted = false
		res.Kind = string(rej.Kind)
		res.Field = rej.Field
		res.Error = rej.Message
	}
	return res, nil
}

func openReader(flags *validateFlags) (generic.Reader, func(), error) {
	if flags.db != "" {
		s, err := sqlite.OpenReadOnly(flags.db)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return s, func() { s.Close() }, nil
	}

	m := memstore.NewMemory()
	if flags.fixtures != "" {
		data, err := os.ReadFile(flags.fixtures)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to read fixtures", err)
		}
		var byCollection map[string]map[string]json.RawMessage
		if err := json.Unmarshal(data, &byCollection); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to parse fixtures", err)
		}
		for collection, docs := range byCollection {
			for key, doc := range docs {
				if _, err := generic.IndexFields(doc); err != nil {
					return nil, nil, WrapExitError(ExitCommandError,
						fmt.Sprintf("fixture %s/%s is not a JSON object", collection, key), err)
				}
				m.Seed(collection, key, doc)
			}
		}
	}
	return m, func() {}, nil
}

func parseClock(now string) (generic.Clock, error) {
	if now == "" {
		return generic.SystemClock{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, now); err == nil {
			return generic.FixedClock{At: t}, nil
		}
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --now %q: use RFC3339 or YYYY-MM-DD", now))
}
