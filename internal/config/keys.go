package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key   string
	typ   keyType
	env   string
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "VENQ_SERVER_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		key: "llm.api_key", typ: kString, env: "VENQ_LLM_API_KEY",
		apply: func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
	},
	{
		key: "llm.base_url", typ: kString, env: "VENQ_LLM_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
	},
	{
		key: "llm.chat_model", typ: kString, env: "VENQ_LLM_CHAT_MODEL",
		apply: func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
	},
	{
		key: "llm.embed_model", typ: kString, env: "VENQ_LLM_EMBED_MODEL",
		apply: func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
	},
	{
		key: "postgres.url", typ: kString, env: "VENQ_POSTGRES_URL",
		apply: func(cfg *Config, v any) { cfg.Postgres.URL = v.(string) },
	},
	{
		key: "redis.addr", typ: kString, env: "VENQ_REDIS_ADDR",
		apply: func(cfg *Config, v any) { cfg.Redis.Addr = v.(string) },
	},
	{
		key: "redis.password", typ: kString, env: "VENQ_REDIS_PASSWORD",
		apply: func(cfg *Config, v any) { cfg.Redis.Password = v.(string) },
	},
	{
		key: "redis.db", typ: kInt, env: "VENQ_REDIS_DB",
		apply: func(cfg *Config, v any) { cfg.Redis.DB = v.(int) },
	},
	{
		key: "storage.data_dir", typ: kString, env: "VENQ_STORAGE_DATA_DIR",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		key: "agent.rate_limit", typ: kInt, env: "VENQ_AGENT_RATE_LIMIT",
		apply: func(cfg *Config, v any) { cfg.Agent.RateLimit = v.(int) },
	},
	{
		key: "agent.rate_window_seconds", typ: kInt, env: "VENQ_AGENT_RATE_WINDOW_SECONDS",
		apply: func(cfg *Config, v any) { cfg.Agent.RateWindowSeconds = v.(int) },
	},
	{
		key: "agent.restore_fields_on_delete", typ: kBool, env: "VENQ_AGENT_RESTORE_FIELDS_ON_DELETE",
		apply: func(cfg *Config, v any) { cfg.Agent.RestoreFieldsOnDelete = v.(bool) },
	},
	{
		key: "log.level", typ: kString, env: "VENQ_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
