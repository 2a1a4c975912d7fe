package cmd

import (
	"strings"

	"github.com/weftlabs/weft/pkg/binarydata"
)

// NewBinaryDataService configures binary payload offloading. An empty mode
// keeps payloads inline in items.
func NewBinaryDataService(mode, availableModes, localPath, redisURL string) (*binarydata.Service, error) {
	cfg := binarydata.Config{
		Mode:             mode,
		LocalStoragePath: localPath,
		RedisURL:         redisURL,
	}

	if availableModes != "" {
		cfg.AvailableModes = strings.Split(availableModes, ",")
	}

	return binarydata.NewService(cfg)
}
