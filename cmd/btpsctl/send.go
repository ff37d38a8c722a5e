package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/btpskit/btps"
	"github.com/joshuapare/btpskit/btps/hcitrans"
)

var (
	sendLine lineFlags
	sendWait time.Duration
)

func init() {
	cmd := newSendCmd()
	addLineFlags(cmd, &sendLine)
	cmd.Flags().DurationVarP(&sendWait, "wait", "w", 500*time.Millisecond, "How long to collect the reply")
	rootCmd.AddCommand(cmd)
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <hex bytes...>",
		Short: "Send a raw HCI packet and print the reply",
		Long: `The send command writes one raw HCI packet, given as hex bytes, and
prints whatever the controller sends back within the wait window.

Bytes may be separated by spaces or colons and may carry a 0x prefix.

Example:
  btpsctl send --port /dev/ttyUSB0 01 03 0c 00
  btpsctl send --port /dev/ttyUSB0 --wait 2s 01:01:10:00
  btpsctl send --port sim 0x01 0x03 0x0c 0x00 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), args)
		},
	}
	return cmd
}

// parseHex decodes bytes written as hex words.
func parseHex(args []string) ([]byte, error) {
	var sb strings.Builder
	for _, a := range args {
		for _, f := range strings.FieldsFunc(a, func(r rune) bool { return r == ' ' || r == ':' || r == ',' }) {
			f = strings.TrimPrefix(strings.ToLower(f), "0x")
			if len(f)%2 == 1 {
				f = "0" + f
			}
			sb.WriteString(f)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("no bytes to send")
	}
	b, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// SendResult is the outcome of a send.
type SendResult struct {
	Sent     string `json:"sent"`
	Received string `json:"received"`
}

type replyBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (r *replyBuffer) HandleData(_ int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, data...)
}

func (r *replyBuffer) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf...)
}

func runSend(ctx context.Context, args []string) error {
	pkt, err := parseHex(args)
	if err != nil {
		return err
	}

	reply := &replyBuffer{}
	ln, err := openLine(sendLine, io.Discard, func(*btps.Kernel) hcitrans.DataHandler { return reply })
	if err != nil {
		return err
	}

	printVerbose("Writing %d bytes\n", len(pkt))
	if err := ln.tr.Write(ctx, hcitrans.TransportID, pkt); err != nil {
		_ = ln.Close()
		return err
	}

	select {
	case <-ctx.Done():
	case <-time.After(sendWait):
	}
	if err := ln.Close(); err != nil {
		return err
	}

	got := reply.bytes()
	if jsonOut {
		return printJSON(SendResult{Sent: hex.EncodeToString(pkt), Received: hex.EncodeToString(got)})
	}
	printInfo("Sent %d bytes: % x\n", len(pkt), pkt)
	if len(got) == 0 {
		printInfo("No reply\n")
		return nil
	}
	printInfo("Received %d bytes: % x\n", len(got), got)
	return nil
}
