package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/scan"
)

var watchURLFlag string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print scan events from a running server",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURLFlag, "url", "ws://localhost:8090/ws/events", "Event stream URL")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, watchURLFlag, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", watchURLFlag, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read events: %w", err)
		}
		fmt.Println(formatEvent(data))
	}
}

// formatEvent renders one stream message as a single line.
func formatEvent(data []byte) string {
	var head struct {
		Type     string        `json:"type"`
		Snapshot scan.Snapshot `json:"snapshot"`
		Config   camera.Config `json:"config"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return string(data)
	}
	switch head.Type {
	case "snapshot":
		return fmt.Sprintf("snapshot  state=%s facing=%s torch=%t", head.Snapshot.State, head.Snapshot.Facing, head.Snapshot.Torch)
	case "camera_config":
		return fmt.Sprintf("camera    %dx%d@%d facing=%s", head.Config.Width, head.Config.Height, head.Config.Framerate, head.Config.Facing)
	}

	var e scan.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return string(data)
	}
	ts := e.Time.Format("15:04:05")
	switch e.Type {
	case scan.EventStateChanged:
		if e.ErrorKind != "" {
			return fmt.Sprintf("%s  state=%s kind=%s", ts, e.State, e.ErrorKind)
		}
		return fmt.Sprintf("%s  state=%s", ts, e.State)
	case scan.EventScanned:
		return fmt.Sprintf("%s  scanned %s", ts, e.Result.Identifier)
	case scan.EventLookupSucceeded:
		return fmt.Sprintf("%s  asset %s %s", ts, e.Asset.ID, e.Asset.Name)
	case scan.EventLookupFailed:
		return fmt.Sprintf("%s  lookup failed: %s", ts, e.Error)
	case scan.EventTorchChanged:
		return fmt.Sprintf("%s  torch=%t", ts, e.Torch != nil && *e.Torch)
	}
	return string(data)
}
