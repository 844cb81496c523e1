// Package timeouts defines timeout constants shared by the rules service
// and its MCP adapter.
package timeouts

import "time"

// GRPCDial caps connecting to the rules service and its first health check.
const GRPCDial = 10 * time.Second

// GRPCRequest caps a single rules call made on behalf of an MCP tool.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 10 * time.Second

// Shutdown limits how long the rules HTTP surface waits for in-flight
// requests during graceful shutdown.
const Shutdown = 5 * time.Second

// StreamShutdown is Shutdown for the MCP HTTP transport, whose streamable
// sessions hold requests open longer.
const StreamShutdown = 35 * time.Second
