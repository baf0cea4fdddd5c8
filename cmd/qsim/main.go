// Copyright 2025 The qsim Authors
// This file is part of the qsim library.
//
// The qsim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The qsim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the qsim library. If not, see <http://www.gnu.org/licenses/>.

// qsim exercises the simulator from the command line: sampled Bell-pair
// statistics and a random-circuit fusion benchmark.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/qubitforge/qsim/fusion"
	"github.com/qubitforge/qsim/gate"
	"github.com/qubitforge/qsim/simulator"
)

type config struct {
	Shots  int
	Seed   int64
	Qubits int
	Gates  int
	Span   int
	Depth  int
}

func defaultConfig() config {
	return config{
		Shots:  10000,
		Seed:   42,
		Qubits: 8,
		Gates:  2000,
		Span:   fusion.DefaultSpan,
		Depth:  fusion.DefaultDepth,
	}
}

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	shotsFlag = &cli.IntFlag{
		Name:  "shots",
		Usage: "number of sampled repetitions",
	}
	seedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "base RNG seed",
	}
	qubitsFlag = &cli.IntFlag{
		Name:  "qubits",
		Usage: "register width for the random circuit",
	}
	gatesFlag = &cli.IntFlag{
		Name:  "gates",
		Usage: "gate count for the random circuit",
	}
	spanFlag = &cli.IntFlag{
		Name:  "span",
		Usage: "maximum fused cluster width",
	}
	depthFlag = &cli.IntFlag{
		Name:  "depth",
		Usage: "maximum fused cluster depth",
	}
)

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, true)))
	app := &cli.App{
		Name:  "qsim",
		Usage: "dense state-vector quantum simulator demos",
		Commands: []*cli.Command{
			{
				Name:   "bell",
				Usage:  "sample a Bell pair and report outcome statistics",
				Flags:  []cli.Flag{configFlag, shotsFlag, seedFlag},
				Action: runBell,
			},
			{
				Name:   "random",
				Usage:  "fuse and run a random circuit, reporting cluster statistics",
				Flags:  []cli.Flag{configFlag, qubitsFlag, gatesFlag, spanFlag, seedFlag, depthFlag},
				Action: runRandom,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("Command failed", "err", err)
	}
}

func loadConfig(ctx *cli.Context) (config, error) {
	cfg := defaultConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %v", path, err)
		}
	}
	if ctx.IsSet(shotsFlag.Name) {
		cfg.Shots = ctx.Int(shotsFlag.Name)
	}
	if ctx.IsSet(seedFlag.Name) {
		cfg.Seed = ctx.Int64(seedFlag.Name)
	}
	if ctx.IsSet(qubitsFlag.Name) {
		cfg.Qubits = ctx.Int(qubitsFlag.Name)
	}
	if ctx.IsSet(gatesFlag.Name) {
		cfg.Gates = ctx.Int(gatesFlag.Name)
	}
	if ctx.IsSet(spanFlag.Name) {
		cfg.Span = ctx.Int(spanFlag.Name)
	}
	if ctx.IsSet(depthFlag.Name) {
		cfg.Depth = ctx.Int(depthFlag.Name)
	}
	return cfg, nil
}

func runBell(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	var zeros, ones, mixed int
	for i := 0; i < cfg.Shots; i++ {
		s := simulator.New()
		s.Seed(uint64(cfg.Seed) + uint64(i))
		q0, err := s.Allocate()
		if err != nil {
			return err
		}
		q1, err := s.Allocate()
		if err != nil {
			return err
		}
		if err := s.Apply(gate.H(), q0); err != nil {
			return err
		}
		if err := s.ApplyControlled(gate.X(), []uint{q0}, q1); err != nil {
			return err
		}
		m0, err := s.Measure(q0)
		if err != nil {
			return err
		}
		m1, err := s.Measure(q1)
		if err != nil {
			return err
		}
		switch {
		case !m0 && !m1:
			zeros++
		case m0 && m1:
			ones++
		default:
			mixed++
		}
	}
	log.Info("Bell statistics", "shots", cfg.Shots, "00", zeros, "11", ones, "mixed", mixed)
	return nil
}

func runRandom(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	s := simulator.NewWithEvaluator(fusion.NewEvaluatorWithLimits(cfg.Span, cfg.Depth))
	s.Seed(uint64(cfg.Seed))
	qs := make([]uint, cfg.Qubits)
	for i := range qs {
		q, err := s.Allocate()
		if err != nil {
			return err
		}
		qs[i] = q
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	gates := make([]fusion.Gate, 0, cfg.Gates)
	for i := 0; i < cfg.Gates; i++ {
		t := qs[rnd.Intn(len(qs))]
		if rnd.Intn(2) == 0 {
			gates = append(gates, fusion.Gate{Target: t, Mat: gate.H()})
			continue
		}
		c := qs[rnd.Intn(len(qs))]
		for c == t {
			c = qs[rnd.Intn(len(qs))]
		}
		gates = append(gates, fusion.Gate{Controls: []uint{c}, Target: t, Mat: gate.X()})
	}

	clusters := fusion.MakeClusters(cfg.Span, cfg.Depth, gates)
	maxWidth, maxDepth := 0, 0
	for _, cl := range clusters {
		maxWidth = max(maxWidth, cl.Width())
		maxDepth = max(maxDepth, cl.Depth())
	}
	log.Info("Cluster statistics", "gates", len(gates), "clusters", len(clusters),
		"maxwidth", maxWidth, "maxdepth", maxDepth)

	start := time.Now()
	for _, g := range gates {
		if err := s.ApplyControlled(g.Mat, g.Controls, g.Target); err != nil {
			return err
		}
	}
	p, err := s.Probability(qs[0])
	if err != nil {
		return err
	}
	log.Info("Circuit evaluated", "elapsed", time.Since(start), "p(q0=1)", p)
	return nil
}
