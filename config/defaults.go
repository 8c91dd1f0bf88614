package config

// Defaults need to be registered for keys to be populated from env.
var defaults = map[string]any{
	"http.addr":       ":3001",
	"http.web_origin": "http://localhost:5173",
	"log_level":       "info",

	"storage.type": "postgres",

	"database.host":         "127.0.0.1",
	"database.port":         5432,
	"database.user":         "postgres",
	"database.password":     "",
	"database.name":         "equipment_loans",
	"database.sslmode":      "disable",
	"database.lock_timeout": "2s",

	"redis.addr":     "127.0.0.1:6379",
	"redis.password": "",
	"redis.db":       0,

	"session.cookie":   "app_session",
	"session.ttl":      "24h",
	"session.seen_ttl": "1m",

	"availability.cache_ttl": "30s",

	"engine.retry_attempts":         5,
	"engine.retry_base_delay":       "10ms",
	"engine.checkout_grace":         "0s",
	"engine.overdue_sweep_interval": "0s",
	"engine.tx_timeout":             "5s",

	"admin_emails": []string{},
}

func Defaults() map[string]any {
	out := make(map[string]any, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}
