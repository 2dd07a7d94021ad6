// Package config defines configuration structures for the llvmgr CLI.
//
// Configuration can be provided via, in increasing precedence:
//   - YAML configuration file
//   - Environment variables (LLVMGR_ prefix)
//   - Command-line flags (applied with Merge)
//
// # Structure
//
//	cache_dir: ~/.cache/llvmgr     # default when empty
//	mirror: s3://bucket?region=... # optional gocloud.dev bucket URL
//	buffer_size: 16KiB
//	jobs: 0                        # 0 means one per CPU
//	http:
//	  timeout: 30s
//	  retry_attempts: 0
//	  retry_backoff: 1s
//	  retry_max_backoff: 30s
//	log:
//	  level: info                  # debug, info, warn, error
//	  format: console              # console, json
//	  file: ""                     # default <cache_dir>/llvmgr.log
//	progress:
//	  tick_interval: 100ms
//	  width: 0                     # 0 means detect
package config
