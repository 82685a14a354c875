// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cv610/airbridge/pkg/air8000"
	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Switch the power peripherals",
	Long: `Switch the Air8000 power peripherals: heaters, fan, LED, laser, and
PWM light. Peripherals are addressed by name (heater1, heater2, fan,
led, laser, light) or a raw numeric ID.`,
}

// peripheral maps a name to its command class and device ID
type peripheral struct {
	cmd air8000.Command
	id  uint8
}

func parsePeripheral(arg string) (peripheral, error) {
	switch strings.ToLower(arg) {
	case "heater1":
		return peripheral{air8000.CmdDevHeater, air8000.DeviceHeater1}, nil
	case "heater2":
		return peripheral{air8000.CmdDevHeater, air8000.DeviceHeater2}, nil
	case "fan":
		return peripheral{air8000.CmdDevFan, air8000.DeviceFan1}, nil
	case "led":
		return peripheral{air8000.CmdDevLED, air8000.DeviceLED}, nil
	case "laser":
		return peripheral{air8000.CmdDevLaser, air8000.DeviceLaser}, nil
	case "light":
		return peripheral{air8000.CmdDevPWMLight, air8000.DevicePWMLight}, nil
	}
	return peripheral{}, fmt.Errorf("unknown peripheral %q", arg)
}

func parseState(arg string) (uint8, error) {
	switch strings.ToLower(arg) {
	case "off":
		return air8000.StateOff, nil
	case "on":
		return air8000.StateOn, nil
	case "blink":
		return air8000.StateBlink, nil
	}
	return 0, fmt.Errorf("invalid state %q (off, on, blink)", arg)
}

func stateName(s uint8) string {
	switch s {
	case air8000.StateOff:
		return "off"
	case air8000.StateOn:
		return "on"
	case air8000.StateBlink:
		return "blink"
	default:
		return fmt.Sprintf("0x%02X", s)
	}
}

var deviceSetCmd = &cobra.Command{
	Use:   "set <peripheral> <off|on|blink>",
	Short: "Switch a peripheral",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePeripheral(args[0])
		if err != nil {
			return err
		}
		state, err := parseState(args[1])
		if err != nil {
			return err
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		if err := dev.DeviceControl(p.cmd, p.id, state, cmdTimeout); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", strings.ToLower(args[0]), stateName(state))
		return nil
	},
}

var deviceGetCmd = &cobra.Command{
	Use:   "get <peripheral>",
	Short: "Read a peripheral's state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id uint8
		if p, err := parsePeripheral(args[0]); err == nil {
			id = p.id
		} else {
			raw, convErr := strconv.ParseUint(args[0], 0, 8)
			if convErr != nil {
				return err
			}
			id = uint8(raw)
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		state, err := dev.DeviceGetState(id, cmdTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", args[0], stateName(state))
		return nil
	},
}

func init() {
	deviceCmd.AddCommand(deviceSetCmd, deviceGetCmd)
	rootCmd.AddCommand(deviceCmd)
}
