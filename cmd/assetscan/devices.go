package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/assetscan/internal/log"
	"github.com/teslashibe/assetscan/pkg/camera"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List video input devices and the one a scan would pick",
	RunE:  runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	facing := camera.FacingMode(cfg.Facing)
	catalog := camera.NewCatalog(camera.NewMediaDevices(), log.Component("devices"))
	devices, err := catalog.Enumerate(ctx, facing)
	if err != nil {
		return err
	}
	picked, _ := camera.Select(devices, facing, 0)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tDEVICE\tFACING\tLABEL")
	for _, d := range devices {
		mark := ""
		if d.DeviceID == picked.DeviceID {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, d.DeviceID, d.Facing, d.Label)
	}
	return w.Flush()
}
