package vectorutils

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/papercomputeco/reel/pkg/vector"
	"github.com/papercomputeco/reel/pkg/vector/qdrant"
	"github.com/papercomputeco/reel/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	TargetURL    string
	APIKey       string
	Dimensions   uint
	Logger       *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		host, port, useTLS, err := splitQdrantTarget(o.TargetURL)
		if err != nil {
			return nil, err
		}
		return qdrant.NewQdrantDriver(qdrant.Config{
			Host:       host,
			Port:       port,
			APIKey:     o.APIKey,
			UseTLS:     useTLS,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// splitQdrantTarget accepts "host", "host:port", or a URL such as
// "https://xyz.cloud.qdrant.io:6334" and extracts connection settings.
func splitQdrantTarget(target string) (host string, port int, useTLS bool, err error) {
	if target == "" {
		return "", 0, false, fmt.Errorf("qdrant target is required")
	}

	hostport := target
	if strings.Contains(target, "://") {
		u, parseErr := url.Parse(target)
		if parseErr != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant target: %w", parseErr)
		}
		useTLS = u.Scheme == "https"
		hostport = u.Host
	}

	host = hostport
	if h, p, splitErr := net.SplitHostPort(hostport); splitErr == nil {
		host = h
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant port: %w", err)
		}
	}

	return host, port, useTLS, nil
}
