package model

// ================ Config ================
type SessionConfig struct {
	TTL      string `envconfig:"SESSION_TTL" default:"30m"`
	MaxTurns int    `envconfig:"SESSION_MAX_TURNS" default:"10"`
}

type EngineConfig struct {
	MaxSteps int `envconfig:"ENGINE_MAX_STEPS" default:"25"`
}

type RetrievalConfig struct {
	StorePath string `envconfig:"STORE_PATH" default:"data/embedding_store.json"`
	TopK      int    `envconfig:"RETRIEVAL_TOP_K" default:"3"`
}

type EmbedderConfig struct {
	Provider string `envconfig:"EMBEDDER_PROVIDER" default:"gemini"`
	Model    string `envconfig:"EMBEDDER_MODEL" default:"text-embedding-004"`
	APIKey   string `envconfig:"EMBEDDER_API_KEY"`
	BaseURL  string `envconfig:"EMBEDDER_BASE_URL"`
}

type ServerConfig struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`
}

type TutorPromptConfig struct {
	TutorName string `envconfig:"PROMPT_TUTOR_NAME" default:"Rox"`
	Subject   string `envconfig:"PROMPT_SUBJECT" default:"TOEFL speaking and writing"`
}
