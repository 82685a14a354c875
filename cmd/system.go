// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"fmt"
	"time"

	"github.com/cv610/airbridge/pkg/air8000"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check device liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		start := time.Now()
		if err := dev.Ping(cmdTimeout); err != nil {
			return err
		}
		fmt.Printf("pong (%.1f ms)\n", float64(time.Since(start).Microseconds())/1000)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show firmware version, power rails, and network state",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, connInfo, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		fmt.Printf("Connection: %s\n", connInfo)

		if v, err := dev.GetVersion(cmdTimeout); err != nil {
			fmt.Printf("Firmware:   unavailable (%v)\n", err)
		} else {
			fmt.Printf("Firmware:   %s\n", v)
		}

		if p, err := dev.QueryPower(cmdTimeout); err != nil {
			fmt.Printf("Power:      unavailable (%v)\n", err)
		} else {
			fmt.Printf("Power:      12V rail %d mV, battery %d mV\n", p.V12mV, p.VBatmV)
		}

		if n, err := dev.QueryNetwork(cmdTimeout); err != nil {
			fmt.Printf("Network:    unavailable (%v)\n", err)
		} else {
			fmt.Printf("Network:    CSQ %d, RSSI %d dBm, IP %s\n", n.CSQ, n.RSSI, n.IP)
			if n.ICCID != "" {
				fmt.Printf("ICCID:      %s\n", n.ICCID)
			}
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reboot the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		if err := dev.Reset(cmdTimeout); err != nil {
			return err
		}
		fmt.Println("device resetting")
		return nil
	},
}

var rtcCmd = &cobra.Command{
	Use:   "rtc",
	Short: "Read or set the device clock",
}

var rtcGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the device clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		t, err := dev.GetRTC(cmdTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("device: %s\n", t.UTC().Format(time.RFC3339))
		fmt.Printf("host:   %s (drift %s)\n",
			time.Now().UTC().Format(time.RFC3339), time.Since(t).Round(time.Second))
		return nil
	},
}

var rtcSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the device clock to the host clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		now := time.Now()
		if err := dev.SetRTC(now, cmdTimeout); err != nil {
			return err
		}
		fmt.Printf("device clock set to %s\n", now.UTC().Format(time.RFC3339))
		return nil
	},
}

var (
	wdtEnable   bool
	wdtTimeout  uint16
	wdtPoweroff uint8
)

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Manage the heartbeat watchdog",
	Long: `Manage the Air8000 heartbeat watchdog.

When enabled, the device power-cycles the host if it receives no frame
within the configured timeout. Any request counts as a heartbeat.`,
}

var watchdogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watchdog state",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		st, err := dev.WatchdogStatus(cmdTimeout)
		if err != nil {
			return err
		}
		state := "disabled"
		if st.Enable {
			state = "enabled"
		}
		fmt.Printf("watchdog %s: timeout %ds, poweroff %ds, %ds remaining, %d resets\n",
			state, st.TimeoutSec, st.PowerOffSec, st.RemainingSec, st.ResetCount)
		return nil
	},
}

var watchdogConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure the watchdog",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		cfg := air8000.WatchdogConfig{
			Enable:      wdtEnable,
			TimeoutSec:  wdtTimeout,
			PowerOffSec: wdtPoweroff,
		}
		if err := dev.ConfigureWatchdog(cfg, cmdTimeout); err != nil {
			return err
		}
		fmt.Println("watchdog configured")
		return nil
	},
}

var watchdogKickCmd = &cobra.Command{
	Use:   "kick",
	Short: "Send one heartbeat",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.WatchdogHeartbeat(cmdTimeout)
	},
}

func init() {
	watchdogConfigCmd.Flags().BoolVar(&wdtEnable, "enable", true, "Enable the watchdog")
	watchdogConfigCmd.Flags().Uint16Var(&wdtTimeout, "wdt-timeout", 60, "Heartbeat timeout in seconds")
	watchdogConfigCmd.Flags().Uint8Var(&wdtPoweroff, "poweroff", 5, "Power-off duration in seconds")

	rtcCmd.AddCommand(rtcGetCmd, rtcSetCmd)
	watchdogCmd.AddCommand(watchdogStatusCmd, watchdogConfigCmd, watchdogKickCmd)
	rootCmd.AddCommand(pingCmd, infoCmd, resetCmd, rtcCmd, watchdogCmd)
}
