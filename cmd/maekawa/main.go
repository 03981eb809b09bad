// Command maekawa runs a deployment of N peers implementing Maekawa's
// √N distributed mutual exclusion algorithm in-process, connected over
// loopback TCP. It takes no required arguments; the flags below are an
// optional convenience layer over the two protocol-level parameters N
// and BASE.
package main

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jabolina/maekawa/pkg/maekawa/core"
	"github.com/jabolina/maekawa/pkg/maekawa/definition"
	"github.com/jabolina/maekawa/pkg/maekawa/metrics"
	"github.com/jabolina/maekawa/pkg/maekawa/types"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "maekawa",
		Usage: "run a simulated Maekawa mutual-exclusion deployment",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "peers", Aliases: []string{"n"}, Value: 4, Usage: "number of peers (N)"},
			&cli.IntFlag{Name: "base-port", Value: 9000, Usage: "base TCP port (BASE); each peer listens on BASE+i"},
			&cli.IntFlag{Name: "iterations", Value: 3, Usage: "request/CS/release cycles each peer performs"},
			&cli.StringFlag{Name: "metrics-addr", Value: "", Usage: "if set, serve Prometheus metrics on this address"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "info or debug"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	n := c.Int("peers")
	base := c.Int("base-port")
	iterations := c.Int("iterations")

	logger := definition.NewDefaultLogger()
	if c.String("log-level") == "debug" {
		logger.ToggleDebug(true)
	}

	var registry *metrics.Registry
	if addr := c.String("metrics-addr"); addr != "" {
		reg, promReg := metrics.NewRegistry()
		registry = reg
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(promReg))
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		logger.Infof("serving metrics on %s", addr)
	}

	barrier := core.NewBarrier(n)
	peers := make([]*core.Peer, n)

	for i := 0; i < n; i++ {
		id := types.PeerID(i)
		transport, err := core.NewTCPTransport(id, n, base, logger.WithPeer(id), 10*time.Second)
		if err != nil {
			return fmt.Errorf("bootstrap failure for peer %d: %w", i, err)
		}

		peers[i] = core.NewPeer(core.Config{
			ID:        id,
			N:         n,
			Quorum:    core.Quorum(n, i),
			Clock:     core.NewLogicalClock(),
			Transport: transport,
			Logger:    logger.WithPeer(id),
			Metrics:   registry,
			Barrier:   barrier,
		})
	}

	var wg sync.WaitGroup
	for _, p := range peers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.RunIterations(iterations, nil)
		}()
	}
	wg.Wait()

	for _, p := range peers {
		p.Stop()
	}

	fmt.Println("maekawa: all peers completed their iterations")
	return nil
}
