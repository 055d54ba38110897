// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the universal-mcp CLI.
package main

import (
	"universalmcp/cli/cmd"
)

func main() {
	cmd.Execute()
}
