package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/phosphor-rfid/phosphor/internal/config"
	"github.com/phosphor-rfid/phosphor/pkg/db"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage the saved card library",
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved cards",
	RunE:  runSavedList,
}

var savedDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved card",
	Args:  cobra.ExactArgs(1),
	RunE:  runSavedDelete,
}

func init() {
	savedCmd.AddCommand(savedListCmd)
	savedCmd.AddCommand(savedDeleteCmd)
	rootCmd.AddCommand(savedCmd)
}

func openRepository() (*db.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := ensureDirectories(cfg.SQLitePath, ""); err != nil {
		return nil, err
	}
	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return nil, errors.Wrap(err, "db init failed")
	}
	return repo, nil
}

func runSavedList(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	saved, err := repo.ListSavedCards()
	if err != nil {
		return errors.Wrap(err, "saved card query failed")
	}

	if len(saved) == 0 {
		fmt.Println("No saved cards")
		return nil
	}

	fmt.Printf("%-6s %-20s %-4s %-18s %-16s\n", "ID", "LABEL", "FREQ", "TYPE", "UID")
	fmt.Println("---------------------------------------------------------------------")
	for _, card := range saved {
		fmt.Printf("%-6d %-20s %-4s %-18s %-16s\n",
			card.ID, card.Label, card.Frequency, card.CardType, card.UID)
	}
	return nil
}

func runSavedDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id: %q", args[0])
	}

	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.DeleteSavedCard(id); err != nil {
		return errors.Wrap(err, "delete failed")
	}
	fmt.Printf("Deleted saved card %d\n", id)
	return nil
}
