package sessionscmder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/dotdir"
	"github.com/papercomputeco/reel/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/reel/pkg/embeddings/utils"
	"github.com/papercomputeco/reel/pkg/store"
	storeutils "github.com/papercomputeco/reel/pkg/store/utils"
	"github.com/papercomputeco/reel/pkg/vector"
	vectorutils "github.com/papercomputeco/reel/pkg/vector/utils"
)

// searchDeps is the local stack shared by the index and search
// subcommands: the transcript store, the embedding provider, and the
// vector store.
type searchDeps struct {
	storeDriver    string
	sqlitePath     string
	dsn            string
	vectorProvider string
	vectorTarget   string
	vectorAPIKey   string
	embedProvider  string
	embedTarget    string
	embedModel     string
	embedDims      uint
}

func (d *searchDeps) registerFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreDriver, &d.storeDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &d.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagDSN, &d.dsn)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &d.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &d.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &d.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &d.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &d.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &d.embedDims)
}

func (d *searchDeps) bind(v *viper.Viper, cmd *cobra.Command) {
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagStoreDriver,
		config.FlagSQLite,
		config.FlagDSN,
		config.FlagVectorStoreProv,
		config.FlagVectorStoreTgt,
		config.FlagEmbeddingProv,
		config.FlagEmbeddingTgt,
		config.FlagEmbeddingModel,
		config.FlagEmbeddingDims,
	})

	d.storeDriver = v.GetString("store.driver")
	d.sqlitePath = v.GetString("store.sqlite_path")
	d.dsn = v.GetString("store.dsn")
	d.vectorProvider = v.GetString("vector_store.provider")
	d.vectorTarget = v.GetString("vector_store.target")
	d.embedProvider = v.GetString("embedding.provider")
	d.embedTarget = v.GetString("embedding.target")
	d.embedModel = v.GetString("embedding.model")
	d.embedDims = v.GetUint("embedding.dimensions")

	// Secrets stay out of the config file. Qdrant cloud keys come in
	// through REEL_VECTOR_STORE_API_KEY only.
	d.vectorAPIKey = v.GetString("vector_store.api_key")
}

// open constructs the store, embedder, and vector driver. On error any
// already-opened component is closed.
func (d *searchDeps) open(ctx context.Context, log *slog.Logger) (store.Driver, embeddings.Embedder, vector.Driver, error) {
	storer, err := storeutils.NewDriver(ctx, &storeutils.NewDriverOpts{
		DriverType: d.storeDriver,
		SQLitePath: d.sqlitePath,
		DSN:        d.dsn,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening transcript store: %w", err)
	}

	vectorTarget, err := resolveVectorTarget(d.vectorProvider, d.vectorTarget)
	if err != nil {
		storer.Close()
		return nil, nil, nil, err
	}

	vectorDriver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: d.vectorProvider,
		TargetURL:    vectorTarget,
		APIKey:       d.vectorAPIKey,
		Dimensions:   d.embedDims,
		Logger:       log,
	})
	if err != nil {
		storer.Close()
		return nil, nil, nil, fmt.Errorf("opening vector store: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: d.embedProvider,
		TargetURL:    d.embedTarget,
		Model:        d.embedModel,
	})
	if err != nil {
		vectorDriver.Close()
		storer.Close()
		return nil, nil, nil, fmt.Errorf("opening embedding provider: %w", err)
	}

	return storer, embedder, vectorDriver, nil
}

// resolveVectorTarget fills in the default sqlite vector database path,
// a vectors.db alongside the dot directory's other state, when no
// target is configured.
func resolveVectorTarget(provider, target string) (string, error) {
	if target != "" || provider != "sqlite" {
		return target, nil
	}

	dir, err := dotdir.NewManager().Target("")
	if err != nil {
		return "", fmt.Errorf("resolving vector store path: %w", err)
	}
	return filepath.Join(dir, "vectors.db"), nil
}
