package main

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/serenitylab/meditation-pipeline/internal/blobstore"
	"github.com/serenitylab/meditation-pipeline/internal/config"
)

func connectNATSStore(cfg config.Config) (*blobstore.NATSStore, error) {
	conn, err := nats.Connect(cfg.Blobs.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return blobstore.NewNATSStore(js, cfg.Blobs.Bucket, cfg.Blobs.PublicBaseURL)
}
