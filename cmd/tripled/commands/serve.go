package commands

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apache/dubbo-go-triple/invocation"
	"github.com/apache/dubbo-go-triple/triple"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	port int
	host string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Start a Triple RPC server",
		Long: `Start a Triple RPC server listening for cleartext HTTP/2 (h2c)
connections.

Examples:
  # Start server on default port
  tripled serve

  # Start server on a specific port
  tripled serve --port 50051`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 50051, "Server port")
	cmd.Flags().StringVar(&opts.host, "host", "0.0.0.0", "Server host")

	return cmd
}

func runServe(opts *serveOptions) error {
	addr := fmt.Sprintf("%s:%d", opts.host, opts.port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	// The registry starts empty and this command offers no way to add
	// methods to it, so every call gets UNIMPLEMENTED. Code that serves
	// real methods builds its own invocation.Registry and passes it to
	// triple.NewServer directly.
	router := invocation.NewRegistry()
	srv := triple.NewServer(router)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("tripled listening on %s\n", addr)
		errCh <- srv.Serve(ln)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-quit:
		fmt.Println("\nShutting down server...")
		if err := ln.Close(); err != nil {
			log.Printf("tripled: listener close: %v", err)
		}
		<-errCh
		fmt.Println("Server stopped")
		return nil
	}
}
