// Package mcp exposes the pipeline over the Model Context Protocol.
//
// The server speaks JSON-RPC over stdio and registers four tools:
// index_repository, search_code, get_status, and clear_index. Tool
// handlers validate arguments, delegate to the indexer, retriever, and
// store, and report failures as MCPError values with JSON-RPC error
// codes.
//
// Logging goes to stderr; stdout carries protocol traffic only.
package mcp
