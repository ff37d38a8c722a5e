package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/btpskit/btps"
	"github.com/joshuapare/btpskit/btps/hcitrans"
)

var (
	monitorLine     lineFlags
	monitorDuration time.Duration
	monitorReset    bool
)

func init() {
	cmd := newMonitorCmd()
	addLineFlags(cmd, &monitorLine)
	cmd.Flags().DurationVarP(&monitorDuration, "duration", "d", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().BoolVar(&monitorReset, "reset", false, "Send HCI_Reset after opening")
	rootCmd.AddCommand(cmd)
}

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Dump everything the controller sends",
		Long: `The monitor command opens the transport and prints each chunk the
controller sends as a hex dump until interrupted.

Example:
  btpsctl monitor --port /dev/ttyUSB0 --baud 115200 --reset
  btpsctl monitor --port /dev/ttyACM0 --duration 10s --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runMonitor(ctx)
		},
	}
	return cmd
}

// MonitorResult summarizes a monitor session.
type MonitorResult struct {
	Port    string         `json:"port"`
	Chunks  uint64         `json:"chunks"`
	Bytes   uint64         `json:"bytes"`
	Elapsed string         `json:"elapsed"`
	Stats   hcitrans.Stats `json:"stats"`
}

func runMonitor(ctx context.Context) error {
	var chunks, total atomic.Uint64
	dump := !jsonOut && !quiet

	ln, err := openLine(monitorLine, os.Stdout, func(k *btps.Kernel) hcitrans.DataHandler {
		return hcitrans.HandlerFunc(func(_ int, data []byte) {
			if data == nil {
				return
			}
			chunks.Add(1)
			total.Add(uint64(len(data)))
			if dump {
				_ = k.DumpData(data)
			}
		})
	})
	if err != nil {
		return err
	}

	start := time.Now()
	if monitorReset {
		printVerbose("Sending HCI_Reset\n")
		if err := ln.tr.Write(ctx, hcitrans.TransportID, hciReset); err != nil {
			_ = ln.Close()
			return err
		}
	}

	if monitorDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, monitorDuration)
		defer cancel()
	}
	<-ctx.Done()

	result := MonitorResult{
		Port:    monitorLine.port,
		Elapsed: time.Since(start).Round(time.Millisecond).String(),
		Stats:   ln.tr.Stats(),
	}
	if err := ln.Close(); err != nil {
		return err
	}
	result.Chunks = chunks.Load()
	result.Bytes = total.Load()

	if jsonOut {
		return printJSON(result)
	}
	printInfo("\nMonitor Summary:\n")
	printInfo("  Port: %s\n", result.Port)
	printInfo("  Elapsed: %s\n", result.Elapsed)
	printInfo("  Received: %d bytes in %d chunks\n", result.Bytes, result.Chunks)
	printInfo("  Sent: %d bytes\n", result.Stats.TxBytes)
	printInfo("  RTS drops: %d, overruns: %d\n", result.Stats.FlowOffs, result.Stats.Overruns)
	return nil
}
