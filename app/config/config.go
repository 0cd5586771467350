package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log         Log         `yaml:"log"`
	Graph       Graph       `yaml:"graph"`
	LLM         LLM         `yaml:"llm"`
	Schema      Schema      `yaml:"schema"`
	Store       Store       `yaml:"store"`
	Workspace   Workspace   `yaml:"workspace"`
	Resolvers   Resolvers   `yaml:"resolvers"`
	Recovery    Recovery    `yaml:"recovery"`
	Interpreter Interpreter `yaml:"interpreter"`
	HTTP        HTTP        `yaml:"http"`
}

type Graph struct {
	// SPARQL endpoint of the knowledge graph
	Endpoint string `yaml:"endpoint" example:"https://enpkg.commons-lab.org/graphdb/repositories/ENPKG" validate:"required"`
	// Optional basic auth username
	User string `yaml:"user"`
	// Optional basic auth password
	Pass string `yaml:"pass"`
	// Request deadline in seconds
	TimeoutSeconds int `yaml:"timeout_seconds" example:"600"`
}

type LLM struct {
	Entry       ModelConfig `yaml:"entry" validate:"required"`
	Validator   ModelConfig `yaml:"validator" validate:"required"`
	Supervisor  ModelConfig `yaml:"supervisor" validate:"required"`
	Resolver    ModelConfig `yaml:"resolver" validate:"required"`
	Generator   ModelConfig `yaml:"generator" validate:"required"`
	Interpreter ModelConfig `yaml:"interpreter" validate:"required"`
	Embeddings  ModelConfig `yaml:"embeddings" validate:"required"`
}

// SetToken replaces the API token for every configured model.
func (l *LLM) SetToken(token string) {
	for _, m := range []*ModelConfig{
		&l.Entry, &l.Validator, &l.Supervisor, &l.Resolver,
		&l.Generator, &l.Interpreter, &l.Embeddings,
	} {
		m.Token = token
	}
}

type ModelConfig struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model id
	Model string `yaml:"model" example:"gpt-4o" validate:"required"`
	// Sampling temperature
	Temperature float32 `yaml:"temperature" example:"0.0"`
	// Transport-level retries
	MaxRetries int `yaml:"max_retries" example:"3"`
}

type Schema struct {
	// Vocabulary standard used for introspection: rdf, rdfs or owl
	Standard string `yaml:"standard" example:"rdf" validate:"oneof=rdf rdfs owl"`
	// Instances sampled per class during property discovery
	SampleSize int `yaml:"sample_size" example:"1000"`
	// URIs excluded from the class listing
	ExcludedURIs []string `yaml:"excluded_uris"`
	// Overrides for the class-listing queries; each must project ?class ?label ?comment
	IntrospectionQueries []string `yaml:"introspection_queries"`
	// Drop properties whose local name ends with _<hex-digits>
	ExcludeHexSuffix *bool `yaml:"exclude_hex_suffix"`
	// Directory for the on-disk schema cache
	CacheDir string `yaml:"cache_dir" example:"data/schema"`
}

type Store struct {
	// Backend for the artifact store and checkpointer: sqlite or file
	Backend string `yaml:"backend" example:"sqlite" validate:"oneof=sqlite file"`
	// SQLite database path (sqlite backend)
	SQLitePath string `yaml:"sqlite_path" example:"data/kgbot.db"`
	// Directory for JSONL logs (file backend)
	FileDir string `yaml:"file_dir" example:"data/store"`
	// Checkpoint TTL in hours
	TTLHours int `yaml:"ttl_hours" example:"24"`
}

type Workspace struct {
	// Root of per-session working directories
	Root string `yaml:"root" example:"data/sessions"`
	// Session directory TTL in hours
	TTLHours int `yaml:"ttl_hours" example:"24"`
}

type Resolvers struct {
	// NCI CACTUS base url
	CactusURL string `yaml:"cactus_url" example:"https://cactus.nci.nih.gov/chemical/structure"`
	// GNPS structure service base url
	GNPSURL string `yaml:"gnps_url" example:"https://structure.gnps2.org"`
	// ChEMBL target API base url
	ChEMBLURL string `yaml:"chembl_url" example:"https://www.ebi.ac.uk/chembl/api/data"`
	// Wikidata SPARQL endpoint
	WikidataURL string `yaml:"wikidata_url" example:"https://query.wikidata.org/sparql"`
	// IDSM endpoint for substructure search
	IDSMURL string `yaml:"idsm_url" example:"https://idsm.elixir-czech.cz/sparql/endpoint/idsm"`
	// CSV with NPC class/pathway/superclass rows for the fallback index
	NPCClassesPath string `yaml:"npc_classes_path" example:"data/npc_classes.csv"`
	// Known plant names consulted by the validator
	PlantListPath string `yaml:"plant_list_path" example:"data/plant_names.csv"`
	// Request deadline in seconds
	TimeoutSeconds int `yaml:"timeout_seconds" example:"600"`
}

type Recovery struct {
	// Schema fragments returned by the similarity search
	SchemaChunks int `yaml:"schema_chunks" example:"12"`
	// Characters per indexed schema fragment
	ChunkSize int `yaml:"chunk_size" example:"1000"`
	// Curated (question, SPARQL) pairs for the template retriever
	ExampleQueriesPath string `yaml:"example_queries_path" example:"data/example_queries.json"`
	// Directory for persisted vector indices
	IndexDir string `yaml:"index_dir" example:"data/index"`
	// Token budget for inlining results into agent messages
	ContextBudget int `yaml:"context_budget" example:"8000"`
}

type Interpreter struct {
	// Maximum CSV rows fed verbatim to the interpreter model
	MaxRows int `yaml:"max_rows" example:"200"`
}

type HTTP struct {
	// Listen address of the API server
	Addr string `yaml:"addr" example:":8080"`
	// Maximum supervisor decisions per turn
	MaxSupervisorDecisions int `yaml:"max_supervisor_decisions" example:"40"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	var result Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	result.applyDefaults()
	result.applyEnv()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.Graph.TimeoutSeconds == 0 {
		c.Graph.TimeoutSeconds = 600
	}
	if c.Schema.Standard == "" {
		c.Schema.Standard = "rdf"
	}
	if c.Schema.SampleSize == 0 {
		c.Schema.SampleSize = 1000
	}
	if c.Schema.ExcludeHexSuffix == nil {
		t := true
		c.Schema.ExcludeHexSuffix = &t
	}
	if c.Schema.CacheDir == "" {
		c.Schema.CacheDir = "data/schema"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/kgbot.db"
	}
	if c.Store.FileDir == "" {
		c.Store.FileDir = "data/store"
	}
	if c.Store.TTLHours == 0 {
		c.Store.TTLHours = 24
	}
	if c.Workspace.Root == "" {
		c.Workspace.Root = "data/sessions"
	}
	if c.Workspace.TTLHours == 0 {
		c.Workspace.TTLHours = 24
	}
	if c.Resolvers.CactusURL == "" {
		c.Resolvers.CactusURL = "https://cactus.nci.nih.gov/chemical/structure"
	}
	if c.Resolvers.GNPSURL == "" {
		c.Resolvers.GNPSURL = "https://structure.gnps2.org"
	}
	if c.Resolvers.ChEMBLURL == "" {
		c.Resolvers.ChEMBLURL = "https://www.ebi.ac.uk/chembl/api/data"
	}
	if c.Resolvers.WikidataURL == "" {
		c.Resolvers.WikidataURL = "https://query.wikidata.org/sparql"
	}
	if c.Resolvers.IDSMURL == "" {
		c.Resolvers.IDSMURL = "https://idsm.elixir-czech.cz/sparql/endpoint/idsm"
	}
	if c.Resolvers.NPCClassesPath == "" {
		c.Resolvers.NPCClassesPath = "data/npc_classes.csv"
	}
	if c.Resolvers.PlantListPath == "" {
		c.Resolvers.PlantListPath = "data/plant_names.csv"
	}
	if c.Resolvers.TimeoutSeconds == 0 {
		c.Resolvers.TimeoutSeconds = 600
	}
	if c.Recovery.SchemaChunks == 0 {
		c.Recovery.SchemaChunks = 12
	}
	if c.Recovery.ChunkSize == 0 {
		c.Recovery.ChunkSize = 1000
	}
	if c.Recovery.ExampleQueriesPath == "" {
		c.Recovery.ExampleQueriesPath = "data/example_queries.json"
	}
	if c.Recovery.IndexDir == "" {
		c.Recovery.IndexDir = "data/index"
	}
	if c.Recovery.ContextBudget == 0 {
		c.Recovery.ContextBudget = 8000
	}
	if c.Interpreter.MaxRows == 0 {
		c.Interpreter.MaxRows = 200
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.MaxSupervisorDecisions == 0 {
		c.HTTP.MaxSupervisorDecisions = 40
	}
}

// applyEnv lets deployment-level settings win over the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("KG_ENDPOINT_URL"); v != "" {
		c.Graph.Endpoint = v
	}
	if v := os.Getenv("KG_SPARQL_USER"); v != "" {
		c.Graph.User = v
	}
	if v := os.Getenv("KG_SPARQL_PASS"); v != "" {
		c.Graph.Pass = v
	}
	if v := os.Getenv("KGBOT_DB_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		for _, m := range []*ModelConfig{
			&c.LLM.Entry, &c.LLM.Validator, &c.LLM.Supervisor,
			&c.LLM.Resolver, &c.LLM.Generator, &c.LLM.Interpreter, &c.LLM.Embeddings,
		} {
			if m.Token == "" || strings.HasPrefix(m.Token, "env:") {
				m.Token = v
			}
		}
	}
}
