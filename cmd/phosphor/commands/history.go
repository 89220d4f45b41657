package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phosphor-rfid/phosphor/internal/config"
	"github.com/phosphor-rfid/phosphor/pkg/db"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past clone runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := ensureDirectories(cfg.SQLitePath, ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	records, err := repo.ListClones(historyLimit)
	if err != nil {
		return errors.Wrap(err, "history query failed")
	}

	if len(records) == 0 {
		fmt.Println("No clone runs recorded")
		return nil
	}

	fmt.Printf("%-22s %-18s %-16s %-20s %-8s\n", "COMPLETED", "SOURCE", "UID", "TARGET", "RESULT")
	fmt.Println("-----------------------------------------------------------------------------------------")
	for _, rec := range records {
		result := "ok"
		if !rec.Success {
			result = "failed"
		}
		fmt.Printf("%-22s %-18s %-16s %-20s %-8s\n",
			rec.CompletedAt, rec.SourceCardType, rec.SourceUID, rec.TargetBlankType, result)
	}
	return nil
}
