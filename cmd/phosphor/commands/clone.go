package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phosphor-rfid/phosphor/internal/config"
	"github.com/phosphor-rfid/phosphor/pkg/bridge"
	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/db"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
	"github.com/phosphor-rfid/phosphor/pkg/wizard"
)

var (
	cloneBlank          string
	cloneSavedID        int64
	cloneSaveLabel      string
	cloneUpdateFirmware bool
	cloneAssumeYes      bool
	cloneTimeout        time.Duration
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Run the guided clone workflow",
	Long:  `Detects the reader, captures a credential (or loads a saved one), waits for a compatible blank, writes, and verifies.`,
	RunE:  runClone,
}

func init() {
	cloneCmd.Flags().StringVar(&cloneBlank, "blank", "", "Blank chip type to write to (default: recommended for the card)")
	cloneCmd.Flags().Int64Var(&cloneSavedID, "saved", 0, "Clone a saved card by id instead of scanning")
	cloneCmd.Flags().StringVar(&cloneSaveLabel, "save", "", "Save the captured credential to the library under this label")
	cloneCmd.Flags().BoolVar(&cloneUpdateFirmware, "update-firmware", false, "Flash bundled firmware when the device is outdated")
	cloneCmd.Flags().BoolVarP(&cloneAssumeYes, "yes", "y", false, "Write without asking for confirmation")
	cloneCmd.Flags().DurationVar(&cloneTimeout, "timeout", 10*time.Minute, "Overall workflow timeout")
	rootCmd.AddCommand(cloneCmd)
}

func runClone(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}
	if err := ensureDirectories(cfg.SQLitePath, cfg.FirmwareDir); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cloneTimeout)
	defer cancel()

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	var saved *db.SavedCard
	if cloneSavedID != 0 {
		saved, err = repo.GetSavedCard(cloneSavedID)
		if err != nil {
			return errors.Wrap(err, "saved card lookup failed")
		}
		if saved == nil {
			return fmt.Errorf("saved card not found: id=%d", cloneSavedID)
		}
	}

	client, err := connectAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := firmwareStore(ctx, cfg)
	if err != nil {
		return err
	}

	machine := wizard.NewMachine(client, repo, store, wizard.Config{
		FlashTimeout:    cfg.FlashTimeout,
		RedetectTimeout: cfg.RedetectTimeout,
	})
	br := bridge.New(client.Notifications(), machine.HandleEvent)
	defer br.Close()
	go machine.Run(ctx)

	machine.Dispatch(wizard.StartDetection{})
	return driveClone(ctx, machine, repo, saved)
}

// driveClone advances the workflow on every state change until it completes
// or dead-ends. The machine ignores duplicated intents, so the driver only
// has to react, not deduplicate.
func driveClone(ctx context.Context, m *wizard.Machine, repo *db.Repository, saved *db.SavedCard) error {
	lastState := wizard.State("")
	for {
		var snap wizard.Snapshot
		select {
		case snap = <-m.Updates():
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "clone workflow timed out")
		}
		if snap.State == lastState {
			reportProgress(snap)
			continue
		}
		lastState = snap.State

		switch snap.State {
		case wizard.StateDetectingDevice:
			fmt.Println("Detecting reader...")

		case wizard.StateFirmwareOutdated:
			fw := snap.Context.Firmware
			fmt.Printf("Firmware mismatch: client %s, device %s\n", fw.ClientVersion, fw.DeviceVersion)
			if cloneUpdateFirmware && fw.BundledImageExists {
				fmt.Println("Flashing bundled firmware...")
				m.Dispatch(wizard.StartFirmwareUpdate{})
			} else {
				fmt.Println("Continuing with mismatched firmware")
				m.Dispatch(wizard.SkipFirmwareUpdate{})
			}

		case wizard.StateUpdatingFirmware:
			fmt.Println("Updating firmware (do not disconnect)...")

		case wizard.StateRedetectingDevice:
			fmt.Println("Firmware flashed, waiting for the device to re-enumerate...")

		case wizard.StateDeviceConnected:
			dev := snap.Context.Device
			fmt.Printf("Connected: %s on %s (firmware %s)\n", dev.Model, dev.Port, dev.Firmware)
			if saved != nil {
				fmt.Printf("Loading saved card %q...\n", saved.Label)
				m.Dispatch(wizard.LoadSavedCard{Card: savedCardPayload(saved)})
			} else {
				fmt.Println("Place the source card on the reader...")
				m.Dispatch(wizard.StartScan{})
			}

		case wizard.StateCredentialIdentified:
			card := snap.Context.Card
			fmt.Printf("Identified: %s (UID %s)\n", card.Type.DisplayName(), card.Data.UID)
			if !card.Cloneable {
				return fmt.Errorf("card cannot be cloned: %s", card.Type.NonCloneableReason())
			}
			if cloneSaveLabel != "" && saved == nil {
				if err := saveCredential(repo, card); err != nil {
					return err
				}
				fmt.Printf("Saved to library as %q\n", cloneSaveLabel)
			}
			blank, err := chooseBlank(card)
			if err != nil {
				return err
			}
			fmt.Printf("Target blank: %s\n", blank.DisplayName())
			m.Dispatch(wizard.ProceedToWrite{BlankType: blank})

		case wizard.StateHfProcessing:
			fmt.Println("Recovering keys (this can take a while)...")

		case wizard.StateDumpReady:
			fmt.Printf("Dump ready: %s\n", snap.Context.HF.DumpInfo)
			blank, err := chooseBlank(snap.Context.Card)
			if err != nil {
				return err
			}
			m.Dispatch(wizard.ProceedToWrite{BlankType: blank})

		case wizard.StateWaitingForBlank:
			fmt.Printf("Place a %s blank on the reader...\n", snap.Context.Blank.Expected.DisplayName())

		case wizard.StateBlankDetected:
			blank := snap.Context.Blank
			fmt.Printf("Blank detected: %s\n", blank.Detected.DisplayName())
			if blank.ExistingData != "" {
				fmt.Printf("Warning: blank holds existing data (%s); it will be overwritten\n", blank.ExistingData)
			}
			if !blank.ReadyToWrite {
				return fmt.Errorf("detected blank %s is not compatible with %s",
					blank.Detected.DisplayName(), blank.Expected.DisplayName())
			}
			if !confirmWrite() {
				fmt.Println("Aborted before write")
				m.Dispatch(wizard.Reset{})
				return nil
			}
			m.Dispatch(wizard.StartWrite{})

		case wizard.StateWriting:
			fmt.Println("Writing...")

		case wizard.StateVerifying:
			fmt.Println("Verifying...")

		case wizard.StateVerificationComplete:
			verify := snap.Context.Verify
			if verify.Success == nil || !*verify.Success {
				return fmt.Errorf("verification failed: mismatched blocks %v", verify.MismatchedBlocks)
			}
			fmt.Println("Verification passed")
			m.Dispatch(wizard.Finish{})

		case wizard.StateComplete:
			fmt.Printf("Clone complete at %s\n", snap.Context.CompletedAt.Format(time.RFC3339))
			return nil

		case wizard.StateError:
			f := snap.Context.Failure
			if f.Recoverable {
				return fmt.Errorf("%s (suggested recovery: %s)", f.UserMessage, f.Recovery)
			}
			return fmt.Errorf("%s", f.UserMessage)
		}
	}
}

// reportProgress prints in-state progress without re-triggering actions.
func reportProgress(snap wizard.Snapshot) {
	switch snap.State {
	case wizard.StateWriting:
		w := snap.Context.Write
		if w.CurrentBlock != nil && w.TotalBlocks != nil {
			fmt.Printf("  writing %.0f%% (block %d/%d)\n", w.Percent, *w.CurrentBlock, *w.TotalBlocks)
		} else if w.Percent > 0 {
			fmt.Printf("  writing %.0f%%\n", w.Percent)
		}
	case wizard.StateHfProcessing:
		hf := snap.Context.HF
		if hf != nil && hf.KeysTotal > 0 {
			fmt.Printf("  %s: %d/%d keys (%ds elapsed)\n", hf.Phase, hf.KeysFound, hf.KeysTotal, hf.ElapsedSecs)
		}
	case wizard.StateUpdatingFirmware:
		fw := snap.Context.Firmware
		if fw.FlashPercent > 0 {
			fmt.Printf("  flashing %d%% %s\n", fw.FlashPercent, fw.FlashMessage)
		}
	}
}

// chooseBlank resolves the --blank flag against the card's constraints.
func chooseBlank(card *wizard.CardGroup) (cards.BlankType, error) {
	if cloneBlank == "" {
		return card.RecommendedBlank, nil
	}
	blank := cards.BlankType(cloneBlank)
	if !knownBlank(blank) {
		return "", fmt.Errorf("unknown blank type: %q", cloneBlank)
	}
	if blank == cards.EM4305 && !card.Type.SupportsEM4305() {
		return "", fmt.Errorf("%s cannot be cloned onto EM4305 blanks", card.Type.DisplayName())
	}
	if !cards.Compatible(card.RecommendedBlank, blank) && blank != card.RecommendedBlank {
		return "", fmt.Errorf("blank %s is not compatible with %s (recommended: %s)",
			blank.DisplayName(), card.Type.DisplayName(), card.RecommendedBlank.DisplayName())
	}
	return blank, nil
}

// confirmWrite asks before overwriting the blank unless --yes was given.
func confirmWrite() bool {
	if cloneAssumeYes {
		return true
	}
	fmt.Print("Write to this blank? [Y/n] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	}
	return false
}

func knownBlank(b cards.BlankType) bool {
	switch b {
	case cards.T5577, cards.EM4305, cards.MagicMifareGen1a, cards.MagicMifareGen2,
		cards.MagicMifareGen3, cards.MagicMifareGen4GTU, cards.MagicMifareGen4GDM,
		cards.MagicUltralight, cards.IClassBlank:
		return true
	}
	return false
}

func saveCredential(repo *db.Repository, card *wizard.CardGroup) error {
	return repo.SaveCard(&db.SavedCard{
		Label:     cloneSaveLabel,
		Frequency: string(card.Frequency),
		CardType:  string(card.Type),
		UID:       card.Data.UID,
		Raw:       card.Data.Raw,
		Decoded:   card.Data.Decoded,
	})
}

func savedCardPayload(card *db.SavedCard) gateway.SavedCardPayload {
	return gateway.SavedCardPayload{
		Frequency:        cards.Frequency(strings.ToUpper(card.Frequency)),
		CardType:         cards.CardType(card.CardType),
		UID:              card.UID,
		Raw:              card.Raw,
		Decoded:          card.Decoded,
		Cloneable:        cards.CardType(card.CardType).Cloneable(),
		RecommendedBlank: cards.CardType(card.CardType).RecommendedBlank(),
	}
}
