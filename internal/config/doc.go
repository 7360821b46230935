// Package config handles configuration loading for the messaging service.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	storage:
//	  secret_key: "${CHAT_STORAGE_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	storage:
//	  preview_ttl: "1h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "/var/lib/propstead/chat.db"
//
// Object storage (attachment previews; optional):
//
//	storage:
//	  endpoint: "minio.internal:9000"
//	  access_key: "${CHAT_STORAGE_KEY}"
//	  secret_key: "${CHAT_STORAGE_SECRET}"
//	  bucket: "chat-files"
//	  use_ssl: true
//	  preview_ttl: "1h"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/propstead/messaging.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
