package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Exchange holds the economic parameters of the engine.
type Exchange struct {
	LotSize int64  // asset units per lot
	FeeBps  int64  // proportional fee in basis points
	Admin   string // admin identity (0x hex address)
	Bridge  string // recognized custody bridge identity (0x hex address)
}

// Node holds the parameters of the node binary around the engine.
type Node struct {
	ListenAddr       string
	DBPath           string
	LogFile          string
	SnapshotInterval time.Duration
}

type Config struct {
	Exchange Exchange
	Node     Node
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			LotSize: 100_000_000,
			FeeBps:  25,
			Admin:   "0x000000000000000000000000000000000000a001",
			Bridge:  "0x000000000000000000000000000000000000b001",
		},
		Node: Node{
			ListenAddr:       ":8080",
			DBPath:           "./data/state.db",
			LogFile:          "data/node.log",
			SnapshotInterval: 5 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("LOT_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Exchange.LotSize = n
		}
	}
	if v := os.Getenv("FEE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Exchange.FeeBps = n
		}
	}
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		cfg.Exchange.Admin = v
	}
	if v := os.Getenv("BRIDGE_ADDR"); v != "" {
		cfg.Exchange.Bridge = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("SNAPSHOT_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Node.SnapshotInterval = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}
