package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	port     int
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the HTTP web server with HTMX chat interface.

Each browser gets its own conversation (cookie sqlchat_session). The page lets the
user pick the embedded database or enter remote connection details and an API key.
A JSON API is served under /api and Prometheus metrics under /metrics.`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run the server on (default from SQLCHAT_HTTP_ADDR, :3000)")
}

func runServe() {
	rt, err := newRuntime()
	if err != nil {
		HandleError(err, "Failed to initialize")
	}
	defer rt.Close()

	// Remote sessions still work without the embedded file.
	ok, err := ensureEmbeddedDatabase(rt.Input, os.Stdin, os.Stdout)
	if err != nil {
		HandleError(err, "Failed to prepare embedded database")
	}
	if !ok {
		fmt.Println("Warning: embedded database missing; only remote connections will work.")
	}

	addr := rt.Settings.HTTPAddress
	if port != 0 {
		addr = fmt.Sprintf(":%d", port)
	}

	fmt.Printf("Starting SQL Chat web server...\n")
	fmt.Printf("Data directory: %s\n", rt.DataDir)
	fmt.Printf("Address: %s\n\n", addr)

	if err := StartServer(rt, addr); err != nil {
		log.Fatalf("Server failed: %v\n", err)
	}
}
