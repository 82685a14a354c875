// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"fmt"
	"time"

	"github.com/cv610/airbridge/pkg/air8000"
	"github.com/spf13/cobra"
)

var fotaVerifyTimeout time.Duration

var fotaCmd = &cobra.Command{
	Use:   "fota <firmware-image>",
	Short: "Update the device firmware",
	Long: `Stream a firmware image to the device over the air-update protocol.

The image is sent in numbered chunks, each acknowledged before the next.
After the upload the device verifies the image and reports the result
through status notifications; the command waits for the verdict.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		verdict := make(chan air8000.FotaNotice, 1)
		dev.SetFotaHandler(func(n air8000.FotaNotice) {
			switch n.Event {
			case air8000.FotaEventDataSent:
				fmt.Printf("\ruploading: %3d%% (%d bytes)", n.Progress, n.SentSize)
			case air8000.FotaEventStatusUpdated:
				if n.Status == air8000.FotaVerifying {
					fmt.Printf("\rdevice verifying image...          ")
				}
				if n.Status == air8000.FotaSuccess || n.Status == air8000.FotaFailed {
					select {
					case verdict <- n:
					default:
					}
				}
			}
		})

		start := time.Now()
		if err := dev.UpdateFirmware(args[0]); err != nil {
			fmt.Println()
			return err
		}
		fmt.Printf("\rupload complete in %s\n", time.Since(start).Round(time.Millisecond))

		// Upload done; wait for the device to verify and report.
		fmt.Println("waiting for device verification...")
		select {
		case n := <-verdict:
			if n.Status == air8000.FotaFailed {
				return fmt.Errorf("firmware update failed: %s", n.Error)
			}
			fmt.Println("firmware update successful; device will reboot")
			return nil
		case <-time.After(fotaVerifyTimeout):
			status, devErr := dev.FotaStatus()
			if status == air8000.FotaSuccess {
				fmt.Println("firmware update successful; device will reboot")
				return nil
			}
			return fmt.Errorf("no verification verdict after %s (status %s, error %s)",
				fotaVerifyTimeout, status, devErr)
		}
	},
}

func init() {
	fotaCmd.Flags().DurationVar(&fotaVerifyTimeout, "verify-timeout", 30*time.Second, "How long to wait for the device verdict")
	rootCmd.AddCommand(fotaCmd)
}
