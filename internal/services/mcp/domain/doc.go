// Package domain translates MCP tool calls into rules service requests.
//
// Each tool resolves its target configuration (explicit game_id or the
// session context), calls the rules gRPC API with correlation metadata, and
// returns a structured result MCP clients can render.
package domain
