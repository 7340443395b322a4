// Command roguevault is the informational CLI driver described in
// SPEC_FULL.md §6: it is not part of the three cores' tested surface,
// but wires them up the way a real embedder would.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"roguevault/internal/config"
	"roguevault/internal/netcode/connection"
	"roguevault/internal/netcode/metrics"
	"roguevault/internal/script/bytefmt"
	"roguevault/internal/script/chunk"
	"roguevault/internal/script/compiler"
	"roguevault/internal/script/lexer"
	"roguevault/internal/script/parser"
	"roguevault/internal/script/vm"
	"roguevault/pkg/logger"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "roguevault",
		Short: "RogueScript compiler/VM, battle engine, and picoNet reliability layer",
	}
	root.AddCommand(compileCmd(), runCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

func compileCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compile <source>",
		Short: "Compile a RogueScript source file to bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading source: %w", err)
			}
			fn, outcome, errs := compileSource(string(source))
			if outcome != vm.OK {
				for _, e := range errs {
					fmt.Fprintln(os.Stderr, e)
				}
				return fmt.Errorf("compile failed")
			}
			if out == "" {
				out = args[0] + ".rgb"
			}
			data, err := bytefmt.EncodeChunk(fn)
			if err != nil {
				return fmt.Errorf("encoding bytecode: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			logger.Success("Compiled %s -> %s", args[0], out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output .rgb path (default: <source>.rgb)")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <bytecode>",
		Short: "Run a compiled .rgb bytecode file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading bytecode: %w", err)
			}
			fn, err := bytefmt.DecodeChunk(data)
			if err != nil {
				return fmt.Errorf("decoding bytecode: %w", err)
			}
			machine := vm.New()
			outcome, result := machine.Run(fn)
			if outcome != vm.OK {
				os.Exit(1)
			}
			os.Exit(coerceExitCode(result))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for a picoNet handshake and log received traffic until a signal arrives",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Banner("roguevault", version)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Info("Listen address: %s", cfg.Net.ListenAddress)
			logger.Info("Protocol id: 0x%08X", cfg.Net.ProtocolID)

			udpAddr, err := net.ResolveUDPAddr("udp", cfg.Net.ListenAddress)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", cfg.Net.ListenAddress, err)
			}
			socket, err := net.ListenUDP("udp", udpAddr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Net.ListenAddress, err)
			}
			defer socket.Close()

			collector := metrics.NewConnectionCollector(xid.New().String())
			prometheus.MustRegister(collector)
			conn := connection.New(socket, cfg.Net.ProtocolID, collector)

			go func() {
				http.Handle("/metrics", promhttp.Handler())
				logger.Info("Metrics listening on %s", metricsAddr)
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					logger.Warn("Metrics server stopped: %v", err)
				}
			}()
			logger.Success("picoNet listener ready")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case sig := <-sigChan:
					logger.Warn("Received signal: %v", sig)
					logger.Info("Shutting down gracefully...")
					time.Sleep(100 * time.Millisecond)
					logger.Success("Stopped")
					return nil
				case <-ticker.C:
					conn.Update()
					for {
						payload, ok := conn.Recv()
						if !ok {
							break
						}
						logger.WithFields("received application payload",
							logger.F("bytes", len(payload)), logger.F("state", conn.State().String()))
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to expose Prometheus metrics on")
	return cmd
}

func compileSource(source string) (*chunk.Function, vm.Outcome, []error) {
	toks, err := lexer.New(source).Tokenize()
	if err != nil {
		return nil, vm.CompileError, []error{err}
	}
	prog, errs := parser.New(toks).Parse()
	if len(errs) > 0 || prog == nil {
		return nil, vm.CompileError, errs
	}
	fn, errs := compiler.Compile(prog)
	if len(errs) > 0 {
		return nil, vm.CompileError, errs
	}
	return fn, vm.OK, nil
}

// coerceExitCode implements §6's "exit code for run equals the numeric
// coercion of the script's return value".
func coerceExitCode(result interface{}) int {
	switch v := result.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}
