package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/scheduler"
	"github.com/sarchlab/nrmac/simulation"
	"github.com/sarchlab/nrmac/telemetry"
	"github.com/sarchlab/nrmac/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cell for a number of slots.",
	Long: "`run --ues 8 --slots 2000 --policy pf` simulates a cell and " +
		"prints what every UE received.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCell(cmd, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.Int("ues", envInt("NRMAC_UES", 4), "Number of UEs")
	f.Uint64("slots", uint64(envInt("NRMAC_SLOTS", 1000)),
		"Number of slots to simulate")
	f.Uint8("numerology", uint8(envInt("NRMAC_NUMEROLOGY", 1)),
		"Numerology of the cell")
	f.String("pattern", envString("NRMAC_PATTERN", "F"),
		"TDD pattern, for example DDDSU")
	f.Uint32("bandwidth", uint32(envInt("NRMAC_BANDWIDTH_RBG", 25)),
		"Bandwidth of each direction in RBGs")
	f.String("policy", envString("NRMAC_POLICY", "rr"),
		"Scheduling policy, rr or pf")
	f.String("access", envString("NRMAC_ACCESS", "tdma"),
		"Access mode, tdma or ofdma")
	f.Uint32("dl-rate", uint32(envInt("NRMAC_DL_RATE", 500)),
		"DL bytes per slot of every UE")
	f.Uint32("ul-rate", uint32(envInt("NRMAC_UL_RATE", 100)),
		"UL bytes per slot of every UE")
	f.Uint64("seed", uint64(envInt("NRMAC_SEED", 1)),
		"Seed of the transport block error draws")
	f.Bool("monitor", envBool("NRMAC_MONITOR", false),
		"Start the monitoring server")
	f.Int("monitor-port", envInt("NRMAC_MONITOR_PORT", 0),
		"Port of the monitoring server, 0 picks one")
	f.Bool("open-browser", envBool("NRMAC_OPEN_BROWSER", false),
		"Open the monitoring page in a browser")
	f.Bool("record", envBool("NRMAC_RECORD", true),
		"Record the scheduling decisions into a sqlite database")
	f.String("trace-db", envString("NRMAC_TRACE_DB", ""),
		"Name of the recording database, without the .sqlite3 suffix")
	f.Bool("log-events", envBool("NRMAC_LOG_EVENTS", false),
		"Print every event handled by the engine to stderr")
	f.Bool("otel-stdout", envBool("NRMAC_OTEL_STDOUT", false),
		"Print the scheduler spans to stdout")
}

func runCell(cmd *cobra.Command, out io.Writer) error {
	f := cmd.Flags()

	policyName, _ := f.GetString("policy")
	policy, err := scheduler.ParsePolicyKind(policyName)
	if err != nil {
		return err
	}

	accessName, _ := f.GetString("access")
	access, err := scheduler.ParseAccessMode(accessName)
	if err != nil {
		return err
	}

	otelStdout, _ := f.GetBool("otel-stdout")
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = otelStdout

	tp, shutdown, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = telemetry.ShutdownWithTimeout(shutdown, 5*time.Second)
	}()

	numUes, _ := f.GetInt("ues")
	numSlots, _ := f.GetUint64("slots")
	numerology, _ := f.GetUint8("numerology")
	pattern, _ := f.GetString("pattern")
	bandwidth, _ := f.GetUint32("bandwidth")
	dlRate, _ := f.GetUint32("dl-rate")
	ulRate, _ := f.GetUint32("ul-rate")
	seed, _ := f.GetUint64("seed")

	b := simulation.MakeBuilder().
		WithNumUes(numUes).
		WithNumSlots(numSlots).
		WithNumerology(numerology).
		WithPattern(pattern).
		WithBandwidth(bandwidth).
		WithPolicy(policy).
		WithAccessMode(access).
		WithTraffic(dlRate, ulRate).
		WithSeed(seed).
		WithTracerProvider(tp)

	if monitor, _ := f.GetBool("monitor"); monitor {
		port, _ := f.GetInt("monitor-port")
		openBrowser, _ := f.GetBool("open-browser")
		b = b.WithMonitor(port, openBrowser)
	}

	if logEvents, _ := f.GetBool("log-events"); logEvents {
		b = b.WithEventLog(os.Stderr)
	}

	if record, _ := f.GetBool("record"); !record {
		b = b.WithoutRecording()
	} else if name, _ := f.GetString("trace-db"); name != "" {
		b = b.WithOutputFileName(name)
	}

	s := b.Build()
	defer s.Terminate()

	err = s.Run()
	if err != nil {
		return err
	}

	printSummary(out, s.Summary())
	printHarq(out, "DL", s.HarqStats(phymac.DL))
	printHarq(out, "UL", s.HarqStats(phymac.UL))

	return nil
}

func printSummary(out io.Writer, summaries []simulation.UeSummary) {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(w, "RNTI\tDL SINR\tDL Mbps\tDL TBs\tDL err\t"+
		"UL SINR\tUL Mbps\tUL TBs\tUL err\t")

	for _, u := range summaries {
		fmt.Fprintf(w, "%d\t%.1f\t%.3f\t%d\t%d\t%.1f\t%.3f\t%d\t%d\t\n",
			u.RNTI, u.DlSinrDb, u.DlMbps, u.DlTbs, u.DlErrors,
			u.UlSinrDb, u.UlMbps, u.UlTbs, u.UlErrors)
	}

	_ = w.Flush()
}

func printHarq(out io.Writer, dir string, stats tracing.HarqStats) {
	fmt.Fprintf(out,
		"%s HARQ: %d done, %d acked, %d dropped, %d retx, avg %.3f ms\n",
		dir, stats.Completed,
		stats.Outcomes[tracing.WhatAcked], stats.Outcomes[tracing.WhatDropped],
		stats.Retransmitted(), float64(stats.AverageTime)*1e3)
}
