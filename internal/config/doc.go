// Package config loads ubike settings.
//
// # Resolution
//
//  1. Defaults (see Default).
//  2. The TOML file at the given path, or ~/.config/ubike/config.toml.
//     A missing file is not an error.
//  3. A .env file next to the config file, read with godotenv.
//  4. Process environment (UBIKE_API_BASE_URL, UBIKE_PREFS_BACKEND,
//     UBIKE_LOG_LEVEL, UBIKE_LISTEN_ADDR). Non-empty values win over .env.
//
// # TOML Format
//
//	api_base_url = "https://apis.youbike.com.tw/"
//	request_timeout = 10        # seconds
//	prefs_backend = "file"      # or "sqlite"
//	prefs_path = "~/.config/ubike/prefs.toml"
//	log_path = "~/.local/state/ubike/ubike.log"
//	log_level = "info"
//	roster_ttl = 0              # seconds; 0 keeps the roster until restart
//	batch_concurrency = 4
//	nearby_radius_m = 1000
//	nearby_limit = 20
//	home_lat = 25.0330
//	home_lng = 121.5654
//	listen_addr = "127.0.0.1:7488"
//
// Every field is optional. Paths get tilde expansion. home_lat and home_lng
// only take effect when both are set.
package config
