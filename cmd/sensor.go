// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sensorCmd = &cobra.Command{
	Use:   "sensor",
	Short: "Read the environmental sensors",
}

var sensorTempCmd = &cobra.Command{
	Use:   "temp [sensor-id]",
	Short: "Read one temperature sensor",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id uint8
		if len(args) == 1 {
			raw, err := strconv.ParseUint(args[0], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid sensor ID %q", args[0])
			}
			id = uint8(raw)
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		temp, err := dev.SensorReadTemp(id, cmdTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("%.1f C\n", temp)
		return nil
	},
}

var sensorAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Read the combined sensor bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		data, err := dev.SensorReadAll(cmdTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("temperature: %.1f C\n", data.Temperature)
		fmt.Printf("humidity:    %d %%\n", data.Humidity)
		fmt.Printf("light:       %d\n", data.Light)
		fmt.Printf("battery:     %d %%\n", data.Battery)
		return nil
	},
}

func init() {
	sensorCmd.AddCommand(sensorTempCmd, sensorAllCmd)
	rootCmd.AddCommand(sensorCmd)
}
