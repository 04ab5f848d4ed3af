package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/scan"
)

var (
	facingFlag  string
	timeoutFlag time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan one label and print the resolved asset",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&facingFlag, "facing", "", "Camera facing: environment or user")
	scanCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Give up after this long (0 waits until interrupted)")
}

func runScan(cmd *cobra.Command, args []string) error {
	facing := camera.FacingMode(facingFlag)
	if facingFlag != "" && !facing.Valid() {
		return fmt.Errorf("facing must be environment or user, got %q", facingFlag)
	}

	events := make(chan scan.Event, 64)
	notifier := scan.NotifierFunc(func(e scan.Event) {
		select {
		case events <- e:
		default:
		}
	})

	sess, err := newSession(cfg, notifier)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if timeoutFlag > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeoutFlag)
		defer cancel()
	}

	if err := sess.ctrl.Start(ctx, facing); err != nil {
		return err
	}
	snap := sess.ctrl.Snapshot()
	if snap.Selected != nil {
		fmt.Printf("Scanning with %s (%s). Hold a label in front of the camera.\n", snap.Selected.Label, snap.Selected.Facing)
	}

	for {
		select {
		case <-ctx.Done():
			return errors.New("no label scanned")
		case e := <-events:
			switch e.Type {
			case scan.EventScanned:
				fmt.Printf("Scanned: %s\n", e.Result.Identifier)
			case scan.EventLookupSucceeded:
				printAsset(e)
				return nil
			case scan.EventLookupFailed:
				return fmt.Errorf("lookup %s: %s", e.Result.Identifier, e.Error)
			case scan.EventStateChanged:
				if e.State == scan.StateError {
					return fmt.Errorf("camera failed (%s): %s", e.ErrorKind, e.Error)
				}
			}
		}
	}
}

func printAsset(e scan.Event) {
	a := e.Asset
	fmt.Println("--------------------------------------------")
	fmt.Printf("Asset:    %s\n", a.ID)
	if a.Name != "" {
		fmt.Printf("Name:     %s\n", a.Name)
	}
	if a.AssetTag != "" {
		fmt.Printf("Tag:      %s\n", a.AssetTag)
	}
	if a.Status != "" {
		fmt.Printf("Status:   %s\n", a.Status)
	}
	if a.Location != "" {
		fmt.Printf("Location: %s\n", a.Location)
	}
}
