package main

import (
	"fmt"

	"github.com/teslashibe/assetscan/internal/config"
	"github.com/teslashibe/assetscan/internal/httpc"
	"github.com/teslashibe/assetscan/internal/log"
	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/decode"
	"github.com/teslashibe/assetscan/pkg/lookup"
	"github.com/teslashibe/assetscan/pkg/scan"
)

// session bundles what a running controller needs so it can be closed in
// one place.
type session struct {
	cameras *camera.Manager
	decoder decode.Decoder
	ctrl    *scan.Controller
}

func newSession(cfg config.Config, notifier scan.Notifier) (*session, error) {
	cameras := camera.NewManager()
	if err := cameras.ApplyPreset(cfg.CameraPreset); err != nil {
		return nil, err
	}
	if err := cameras.UpdateConfig(map[string]interface{}{"facing": cfg.Facing}); err != nil {
		return nil, err
	}

	decoder, err := decode.New(cfg.Decoder)
	if err != nil {
		return nil, err
	}

	resolver := lookup.New(cfg.APIBaseURL, cfg.APIToken,
		lookup.WithHTTPClient(httpc.NewClient(cfg.LookupTimeout)),
		lookup.WithTimeout(cfg.LookupTimeout),
		lookup.WithLogger(log.L()))

	ctrl := scan.New(camera.NewMediaDevices(), decoder, resolver,
		scan.WithNotifier(notifier),
		scan.WithCameraManager(cameras),
		scan.WithLookupTimeout(cfg.LookupTimeout),
		scan.WithLoopStopTimeout(cfg.LoopStopTimeout))

	return &session{cameras: cameras, decoder: decoder, ctrl: ctrl}, nil
}

func (s *session) Close() error {
	err := s.ctrl.Close()
	if derr := s.decoder.Close(); derr != nil && err == nil {
		err = fmt.Errorf("close decoder: %w", derr)
	}
	return err
}
