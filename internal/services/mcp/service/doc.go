// Package service hosts the ruleforge MCP server and its stdio and HTTP
// transports.
package service
