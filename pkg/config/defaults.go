package config

const (
	defaultBackendURL = "http://localhost:8000"
	defaultUserID     = "user"

	defaultStoreDriver = "sqlite"

	defaultServeListen   = ":8000"
	defaultServeAgentURL = "http://localhost:9001"

	defaultPublishProvider = "nop"
	defaultPublishTopic    = "reel-events"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Backend: BackendConfig{
			URL:    defaultBackendURL,
			UserID: defaultUserID,
		},
		Store: StoreConfig{
			Driver: defaultStoreDriver,
		},
		Serve: ServeConfig{
			Listen:   defaultServeListen,
			AgentURL: defaultServeAgentURL,
		},
		Publish: PublishConfig{
			Provider: defaultPublishProvider,
			Topic:    defaultPublishTopic,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
	}
}
