package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/airhist/internal/config"
	"github.com/tejusbharadwaj/airhist/internal/database"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the contents of the store",
	Long: `Lists every sensor group in the configured store with its name and the
row and batch counts of each table.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	// only the store section is needed here
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Store.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := database.Open(ctx, cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	groups, err := store.Groups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tNAME\tTABLE\tROWS\tBATCHES")
	for _, g := range groups {
		id, err := strconv.Atoi(strings.TrimPrefix(g, "sensor_"))
		if err != nil {
			continue
		}
		attrs, err := store.Attributes(ctx, g)
		if err != nil {
			return err
		}
		for _, c := range models.Channels {
			for _, l := range models.Lineages {
				key := models.TableKey(id, c, l)
				rows, err := store.RowCount(ctx, key)
				if err != nil {
					return err
				}
				batches, err := store.BatchCount(ctx, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%d\t%d\n", g, attrs[database.AttrName], c, l, rows, batches)
			}
		}
	}
	return tw.Flush()
}
