package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/itisfoundation/osparc-tables/internal/export"
	apphttp "github.com/itisfoundation/osparc-tables/internal/http"
	"github.com/itisfoundation/osparc-tables/internal/progress"
)

// maxParallelExports caps tables exported at once; each already runs
// page_concurrency requests.
const maxParallelExports = 2

// newExportCmd creates the 'export' command.
func newExportCmd() *cobra.Command {
	var tf tableFlags
	var dest, formatName, sortCol string
	var desc, raw bool

	cmd := &cobra.Command{
		Use:   "export <resource> [resource...]",
		Short: "Write whole tables to a file, S3 or Azure Blob Storage",
		Long: `Export every row of one or more tables.

The destination is a local path, s3://bucket/key or azblob://container/blob.
With several resources the destination must be a directory or prefix
(ending in "/"); each table is written as <resource>.<format>.

S3 credentials come from the [export] section of the apiconfig file or the
default AWS chain. Azure uploads use azure_service_url (with a SAS token).

Examples:
  osparc-tables export transactions --dest tx.csv
  osparc-tables export usage rentals --dest s3://reports/2024-03/ --format json
  osparc-tables export usage --from 2024-03-01 --dest azblob://reports/usage.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()

			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			d, err := export.ParseDestination(dest)
			if err != nil {
				return err
			}
			if len(args) > 1 && !d.Directory {
				return fmt.Errorf("exporting %d tables needs a directory or prefix destination ending in /", len(args))
			}

			job := exportJob{format: format, dest: d, tf: tf, sortCol: sortCol, desc: desc, plain: !raw}

			if len(args) == 1 {
				rep := progress.Reporter(progress.NewNoOpProgress())
				if !verbose {
					rep = progress.NewCLIProgress(cmd.ErrOrStderr())
				}
				res, err := job.run(ctx, args[0], rep)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			}

			ui := progress.NewMultiUI(os.Stderr, len(args))
			results := make([]*export.Result, len(args))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(maxParallelExports)
			for i, resource := range args {
				bar := ui.AddBar(i+1, resource, d.For(resource, format).String())
				g.Go(func() error {
					res, err := job.run(gctx, resource, bar)
					results[i] = res
					return err
				})
			}
			err = g.Wait()
			ui.Wait()

			for _, res := range results {
				if res != nil {
					printResult(cmd.OutOrStdout(), res)
				}
			}
			return err
		},
	}

	addTableFlags(cmd, &tf)
	cmd.Flags().StringVarP(&dest, "dest", "o", "", "Destination: path, s3://bucket/key or azblob://container/blob (required)")
	cmd.Flags().StringVarP(&formatName, "format", "f", "csv", "Output format: csv or json")
	cmd.Flags().StringVar(&sortCol, "sort", "", "Column id to sort by (default: resource default)")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&raw, "raw", false, "Keep status and link markup in cells")
	_ = cmd.MarkFlagRequired("dest")

	return cmd
}

// exportJob is the shared part of every table of one export command.
type exportJob struct {
	format  export.Format
	dest    export.Destination
	tf      tableFlags
	sortCol string
	desc    bool
	plain   bool
}

func (j exportJob) run(ctx context.Context, resource string, rep progress.Reporter) (*export.Result, error) {
	s, err := openTable(ctx, resource, j.tf)
	if err != nil {
		rep.Error(err)
		return nil, err
	}
	defer s.Close()

	if err := sortModel(s.model, j.sortCol, j.desc); err != nil {
		rep.Error(err)
		return nil, err
	}

	httpClient, err := apphttp.CreateTransferClient(s.cfg, GetLogger())
	if err != nil {
		rep.Error(err)
		return nil, fmt.Errorf("failed to create transfer client: %w", err)
	}
	sink, err := export.NewSink(ctx, j.dest.For(s.def.Name, j.format), s.cfg, httpClient)
	if err != nil {
		rep.Error(err)
		return nil, err
	}

	pageConcurrency := s.cfg.PageConcurrency
	if pageConcurrency < 1 {
		pageConcurrency = 1
	}
	res, err := export.Run(ctx, s.model, sink, export.Options{
		Format:   j.format,
		Plain:    j.plain,
		Window:   s.cfg.ServerMaxLimit * pageConcurrency,
		Retry:    apphttp.DefaultRetryConfig(),
		Progress: rep,
		Logger:   GetLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", s.def.Name, err)
	}
	return res, nil
}

func printResult(w io.Writer, res *export.Result) {
	fmt.Fprintf(w, "✓ %s → %s (%d rows, %d bytes, %s)\n",
		res.Resource, res.Destination, res.Rows, res.Bytes, res.Duration.Round(time.Millisecond))
}
