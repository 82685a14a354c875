// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Request behaviour
	cmdTimeout time.Duration
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "airbridge",
	Short: "Air8000 MCU control tool",
	Long: `Airbridge - A CLI tool for the CV610 host side of the Air8000 MCU link.

The Air8000 owns the motors, sensors, and power peripherals of the camera
head. This tool talks to it over the UART protocol: system queries, motor
and peripheral control, file transfer, and firmware updates.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the AIRBRIDGE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().DurationVarP(&cmdTimeout, "timeout", "t", 2*time.Second, "Per-request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol traffic to stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
