// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Command polenta serves a distributed SQL query engine to MCP clients.
package main

import (
	"polenta/gateway/cmd"
)

func main() {
	cmd.Execute()
}
