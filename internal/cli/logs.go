package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itisfoundation/osparc-tables/internal/activity"
	"github.com/itisfoundation/osparc-tables/internal/config"
	"github.com/itisfoundation/osparc-tables/internal/filters"
)

const logGroup = "activity"

// newLogsCmd creates the 'logs' command.
func newLogsCmd() *cobra.Command {
	var file, search, level string
	var sources []string
	var first, last, maxEntries int
	var stats bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Search the JSON log file",
		Long: `Filter the JSON log written with --log-file (or logging.file in the
apiconfig) by text, minimum level and source. Filters combine with AND.

Examples:
  osparc-tables logs --level warn
  osparc-tables logs --search wallet --source api,table --last 99`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				path = cfg.LogFile
				if path == "" || path == "default" {
					path = config.DefaultLogFile()
				}
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()

			m := activity.NewModel(maxEntries)
			_, skipped, err := m.ReadJSONLines(f)
			if err != nil {
				return err
			}
			if skipped > 0 {
				GetLogger().Debug().Int("skipped", skipped).Str("path", path).Msg("skipped non-JSON log lines")
			}

			ctrl := filters.NewController(nil, GetLogger())
			defer ctrl.Close()
			m.Bind(ctrl, logGroup)
			for id, v := range map[string]string{
				activity.FilterText:    search,
				activity.FilterLevel:   level,
				activity.FilterSources: strings.Join(sources, ","),
			} {
				if err := ctrl.Publish(filters.FilterData{GroupID: logGroup, FilterID: id, Value: v}); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if stats {
				st := m.Stats()
				fmt.Fprintf(out, "%d entries, %d errors, %d warnings\n", st.Total, st.Errors, st.Warnings)
				fmt.Fprintf(out, "sources: %s\n", strings.Join(m.Sources(), ", "))
				return nil
			}

			rs, err := m.Rows(first, last)
			if err != nil {
				return err
			}
			if err := renderRows(out, activity.Columns, rs); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d matching entries\n", len(rs), m.Count())
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default: configured log file)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only entries containing this text")
	cmd.Flags().StringVarP(&level, "level", "l", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Only entries from these sources")
	cmd.Flags().IntVar(&first, "first", 0, "First matching entry (0-based)")
	cmd.Flags().IntVar(&last, "last", 49, "Last matching entry (inclusive)")
	cmd.Flags().IntVar(&maxEntries, "max-entries", 0, "Entries kept in memory (0 = default)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print counts instead of entries")

	return cmd
}
