// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/cv610/airbridge/pkg/air8000"
	"github.com/spf13/cobra"
)

var sniffShowCRC bool

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Display decoded frames in human-readable format",
	Long: `Continuously decode and display Air8000 protocol frames as they arrive.

Each frame is shown with timestamp, type, sequence number, command, and
payload length. Useful for watching the link without driving it.

Supports both serial and WebSocket connections.`,
	RunE: runSniff,
}

func init() {
	sniffCmd.Flags().BoolVar(&sniffShowCRC, "crc", false, "Verify and display frame CRCs")
	rootCmd.AddCommand(sniffCmd)
}

func runSniff(cmd *cobra.Command, args []string) error {
	// Open the raw transport; this command only listens, so the full
	// device handle with its request loop is not needed.
	dialer, connInfo, err := buildDialer()
	if err != nil {
		return err
	}
	conn, err := dialer()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Airbridge - Frame Sniffer\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := air8000.NewDecoder()
	buf := make([]byte, 1024)

	for {
		n, err := conn.Read(buf, 100*time.Millisecond)
		if err != nil {
			log.Printf("Read error: %v", err)
			return nil
		}
		if n == 0 {
			continue
		}

		decoder.Feed(buf[:n])
		for f := decoder.Next(); f != nil; f = decoder.Next() {
			line := fmt.Sprintf("[%s] %s seq=%d cmd=0x%04X len=%d",
				f.Timestamp.Format("15:04:05.000"), f.Type, f.Seq, uint16(f.Cmd), len(f.Data))
			if sniffShowCRC {
				if f.CRCValid() {
					line += " crc=ok"
				} else {
					line += " crc=BAD"
				}
			}
			fmt.Println(line)
		}
	}
}
