// Package mcp exposes the knowledge store and chat router as MCP tools over
// the stdio transport, using github.com/modelcontextprotocol/go-sdk/mcp.
//
// Tools:
//
//	concept_learn    teach an explanation for a concept
//	concept_recall   recall a concept with its spiral expansion
//	concept_related  list stored concepts sharing a token
//	ask              send one chat utterance through the router
package mcp
