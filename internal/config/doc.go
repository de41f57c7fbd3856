// Package config manages application configuration for the taskboard API.
//
// Configuration is layered, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. An optional TOML file named by CONFIG_FILE
//  3. A .env file in the working directory (loaded into the environment)
//  4. The process environment
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS)
//   - DatabaseConfig: SurrealDB connection settings
//   - RedisConfig: optional shared store for rate limiting and idempotency
//   - LogConfig: log level and output format
//   - ResourcesConfig: per-resource list limit policies
//   - ReconcileConfig: reverse-index repair job schedule
//
// # Environment Variables
//
//	SERVER_PORT              - HTTP server port (default: 8080)
//	DB_HOST, DB_PORT         - SurrealDB endpoint (default: localhost:8000)
//	DB_NAMESPACE, DB_DATABASE
//	REDIS_ADDR               - enables Redis-backed middleware state
//	LOG_LEVEL, LOG_FORMAT    - info/json by default
//	TASK_DEFAULT_LIMIT       - default page size for GET /tasks (default: 100)
//	USER_DEFAULT_LIMIT       - default page size for GET /users (default: 0, unlimited)
//	RECONCILE_INTERVAL       - reverse-index repair period (default: 10m)
package config
