// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package logger provides structured JSON logging with per-account context
for gateway components.

# Overview

The logger outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name
  - Instance ID and container name (for distributed tracing)
  - Account ID (for per-tenant isolation)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("gateway")

Log messages with account and request context:

	log.Info("acct-123", "req-456", "Request admitted", map[string]interface{}{
	    "provider": "openai",
	    "model":    "gpt-4",
	})

Log errors with status codes:

	log.ErrorWithCode("acct-123", "req-456", "Request rejected", 429, err, nil)

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - LOG_LEVEL: Minimum level to emit (DEBUG, INFO, WARN, ERROR; default INFO)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
