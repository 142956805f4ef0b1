package app

import (
	"context"
	"fmt"
	"log"

	"structai/internal/gateway/config"
	"structai/internal/gateway/repository/audio"
	"structai/internal/gateway/repository/slot"
)

type gatewayStores struct {
	slots slot.Store
	// audio is nil when narration clips are not archived.
	audio audio.Store
}

func (s *gatewayStores) Close() error {
	if s == nil || s.slots == nil {
		return nil
	}
	return s.slots.Close()
}

func initStores(ctx context.Context, cfg *config.Config) (*gatewayStores, error) {
	slots, err := slot.Open(ctx, slot.Config{
		Backend:     cfg.History.Backend,
		Path:        cfg.History.Path,
		SQLitePath:  cfg.History.SQLitePath,
		PostgresDSN: cfg.History.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	log.Printf("history store: %s", cfg.History.Backend)

	audioStore, err := chooseAudioStore(cfg)
	if err != nil {
		_ = slots.Close()
		return nil, err
	}
	return &gatewayStores{slots: slots, audio: audioStore}, nil
}

func chooseAudioStore(cfg *config.Config) (audio.Store, error) {
	if !cfg.Audio.CanUseS3() {
		if cfg.Audio.Enabled {
			log.Printf("audio store: disabled (s3 config incomplete)")
		}
		return nil, nil
	}
	s3Cfg := audio.S3Config{
		Endpoint:  cfg.Audio.Endpoint,
		Region:    cfg.Audio.Region,
		AccessKey: cfg.Audio.AccessKey,
		SecretKey: cfg.Audio.SecretKey,
		Bucket:    cfg.Audio.Bucket,
		UseSSL:    cfg.Audio.UseSSL,
	}
	store, err := audio.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio s3 store: %w", err)
	}
	log.Printf("audio store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
	return store, nil
}
