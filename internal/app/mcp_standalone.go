package app

import (
	mcpserver "rowriver/internal/mcp"
)

// ServeMCP serves the river tools on stdin/stdout until the client disconnects.
func (a *App) ServeMCP() error {
	srv := mcpserver.New(mcpserver.Deps{
		Rivers:      a.rivers,
		Documents:   a.docs,
		Connections: a.conns,
		Logger:      a.log,
	})
	return srv.ServeStdio()
}
