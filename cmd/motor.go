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

var motorCmd = &cobra.Command{
	Use:   "motor",
	Short: "Control the pan/tilt/zoom motors",
	Long: `Control the Air8000 motor controllers.

Motors are addressed as y (pan), x (tilt), z (zoom), all, or a raw numeric
ID. Angles and velocities are in radians and radians/second.`,
}

// parseMotorID resolves a motor argument: an axis name or a raw ID
func parseMotorID(arg string) (uint8, error) {
	switch strings.ToLower(arg) {
	case "y", "pan":
		return air8000.MotorY, nil
	case "x", "tilt":
		return air8000.MotorX, nil
	case "z", "zoom":
		return air8000.MotorZ, nil
	case "all":
		return air8000.MotorAll, nil
	}
	id, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid motor %q (use y, x, z, all, or a numeric ID)", arg)
	}
	return uint8(id), nil
}

func parseFloatArg(arg, what string) (float32, error) {
	v, err := strconv.ParseFloat(arg, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return float32(v), nil
}

var motorMode string

var motorEnableCmd = &cobra.Command{
	Use:   "enable <motor>",
	Short: "Power a motor controller up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		mode, err := parseMotorMode(motorMode)
		if err != nil {
			return err
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorEnable(id, mode, cmdTimeout)
	},
}

func parseMotorMode(arg string) (uint8, error) {
	switch strings.ToLower(arg) {
	case "mit":
		return air8000.MotorModeMIT, nil
	case "position", "pos":
		return air8000.MotorModePosition, nil
	case "posvel":
		return air8000.MotorModePosVel, nil
	case "velocity", "vel":
		return air8000.MotorModeVelocity, nil
	}
	return 0, fmt.Errorf("invalid mode %q (mit, position, posvel, velocity)", arg)
}

var motorDisableCmd = &cobra.Command{
	Use:   "disable <motor>",
	Short: "Power a motor controller down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorDisable(id, cmdTimeout)
	},
}

var motorStopCmd = &cobra.Command{
	Use:   "stop <motor>",
	Short: "Halt a motor immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorStop(id, cmdTimeout)
	},
}

var motorRelative bool

var motorRotateCmd = &cobra.Command{
	Use:   "rotate <motor> <angle-rad> <velocity-rad/s>",
	Short: "Rotate a motor to an angle",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		angle, err := parseFloatArg(args[1], "angle")
		if err != nil {
			return err
		}
		velocity, err := parseFloatArg(args[2], "velocity")
		if err != nil {
			return err
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		if motorRelative {
			return dev.MotorRotateRel(id, angle, velocity, cmdTimeout)
		}
		return dev.MotorRotate(id, angle, velocity, cmdTimeout)
	},
}

var motorVelocityCmd = &cobra.Command{
	Use:   "velocity <motor> <rad/s>",
	Short: "Spin a motor at constant velocity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		velocity, err := parseFloatArg(args[1], "velocity")
		if err != nil {
			return err
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorSetVelocity(id, velocity, cmdTimeout)
	},
}

var motorOriginCmd = &cobra.Command{
	Use:   "origin <motor>",
	Short: "Declare the current position as zero",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorSetOrigin(id, cmdTimeout)
	},
}

var motorPositionCmd = &cobra.Command{
	Use:   "position <motor>",
	Short: "Read the current position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		pos, err := dev.MotorGetPosition(id, cmdTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("%.4f rad\n", pos)
		return nil
	},
}

var motorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every motor's state",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		states, err := dev.MotorGetAll(cmdTimeout)
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("no motors reported")
			return nil
		}
		for _, s := range states {
			fmt.Printf("motor 0x%02X: action %d, speed %d\n", s.ID, s.Action, s.Speed)
		}
		return nil
	},
}

var motorInfoCmd = &cobra.Command{
	Use:   "show <motor>",
	Short: "Show a full controller snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		info, err := dev.MotorRefresh(id, cmdTimeout)
		if err != nil {
			return err
		}
		enabled := "disabled"
		if info.Enabled {
			enabled = "enabled"
		}
		fmt.Printf("motor 0x%02X (%s)\n", info.ID, enabled)
		fmt.Printf("  position: %.4f rad\n", info.Position)
		fmt.Printf("  velocity: %.4f rad/s\n", info.Velocity)
		fmt.Printf("  torque:   %.4f Nm\n", info.Torque)
		fmt.Printf("  temps:    MOS %d C, rotor %d C\n", info.TempMOS, info.TempRotor)
		if info.ErrorCode != 0 {
			fmt.Printf("  error:    0x%02X\n", info.ErrorCode)
		}
		return nil
	},
}

var motorRegCmd = &cobra.Command{
	Use:   "reg <motor> <reg> [value]",
	Short: "Read or write a controller register",
	Long: `Read or write one motor controller register.

With two arguments the register is read; with three it is written. Writes
are volatile until persisted with 'motor save'. Register addresses are
numeric (see the controller datasheet).`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		reg, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid register %q", args[1])
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		if len(args) == 2 {
			val, err := dev.MotorReadReg(id, uint8(reg), cmdTimeout)
			if err != nil {
				return err
			}
			fmt.Printf("reg 0x%02X = %g\n", reg, val)
			return nil
		}

		val, err := parseFloatArg(args[2], "value")
		if err != nil {
			return err
		}
		return dev.MotorWriteReg(id, uint8(reg), val, cmdTimeout)
	},
}

var motorSaveCmd = &cobra.Command{
	Use:   "save <motor>",
	Short: "Persist controller registers to flash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorSaveFlash(id, cmdTimeout)
	},
}

var motorClearCmd = &cobra.Command{
	Use:   "clear-error <motor>",
	Short: "Clear a latched controller fault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMotorID(args[0])
		if err != nil {
			return err
		}
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorClearError(id, cmdTimeout)
	},
}

var motorPowerCmd = &cobra.Command{
	Use:   "power <on|off>",
	Short: "Switch the motor supply rail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch strings.ToLower(args[0]) {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("invalid state %q (use on or off)", args[0])
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		return dev.MotorPower(on, cmdTimeout)
	},
}

func init() {
	motorEnableCmd.Flags().StringVar(&motorMode, "mode", "posvel", "Control mode: mit, position, posvel, velocity")
	motorRotateCmd.Flags().BoolVarP(&motorRelative, "relative", "r", false, "Rotate by a relative angle")

	motorCmd.AddCommand(
		motorEnableCmd, motorDisableCmd, motorStopCmd,
		motorRotateCmd, motorVelocityCmd, motorOriginCmd,
		motorPositionCmd, motorStatusCmd, motorInfoCmd,
		motorRegCmd, motorSaveCmd, motorClearCmd, motorPowerCmd,
	)
	rootCmd.AddCommand(motorCmd)
}
