package ledger

import (
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
)

// tomlSettings mirrors go-ethereum's cmd/geth tomlSettings: TOML keys are
// matched exactly against Config's lower-case toml tags (a file writes
// "datadir", not "DataDir"), and keys that match no field are ignored.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return strings.ToLower(field)
	},
	MissingField: func(rt reflect.Type, field string) error {
		return nil
	},
}

// Config is the ledger's on-disk configuration, loaded from a TOML file the
// way go-ethereum's node/cmd layer loads its own config.
type Config struct {
	// DataDir is the root directory under which the transaction log, hash
	// store and (if Backend is "leveldb") the embedded KV database live.
	DataDir string `toml:"datadir"`
	// Backend selects the transaction-log KeyValueStore: "text" (default),
	// "chunked" or "leveldb".
	Backend string `toml:"backend"`
	// ChunkSize is the number of records per chunk file when Backend is
	// "chunked". Ignored otherwise.
	ChunkSize int `toml:"chunksize"`
	// HashCacheBytes sizes the hash store's optional fastcache read-through
	// cache. Zero disables caching.
	HashCacheBytes int `toml:"hashcachebytes"`
	// Serializer selects the transaction codec: "compact" (default, text)
	// or "msgpack" (binary).
	Serializer string `toml:"serializer"`
	// GenesisFile optionally names an RLP-encoded bootstrap file loaded
	// once, before any user Add, when the ledger is created empty.
	GenesisFile string `toml:"genesisfile"`
}

// DefaultConfig returns a Config usable as-is for local development: a text
// transaction log with a small hash cache, no genesis file.
func DefaultConfig() Config {
	return Config{
		Backend:        "text",
		Serializer:     "compact",
		ChunkSize:      1 << 16,
		HashCacheBytes: 1 << 22,
	}
}

// LoadConfig reads and decodes a TOML config file, filling in any field the
// file omits with DefaultConfig's value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, wrapStoreIO("loadConfig", err)
	}
	defer f.Close()
	if err := tomlSettings.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, &Error{Kind: KindInvalidArgument, Op: "loadConfig", Err: err}
	}
	return cfg, nil
}
