// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cv610/airbridge/pkg/air8000"
	"github.com/spf13/cobra"
)

var sendBlockSize uint32

var sendCmd = &cobra.Command{
	Use:   "send <local-file> [remote-name]",
	Short: "Push a file to the device",
	Long: `Push a local file to the device over the chunked transfer protocol.

The remote name defaults to the local file's base name. Each block is
acknowledged before the next is sent; progress is printed as it goes.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		localPath := args[0]
		remoteName := filepath.Base(localPath)
		if len(args) == 2 {
			remoteName = args[1]
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		dev.SetTransferHandler(func(n air8000.TransferNotice) {
			if n.Event == air8000.TransferEventDataSent {
				fmt.Printf("\rsending %s: %3d%%", remoteName, n.Progress)
			}
		})

		start := time.Now()
		if err := dev.SendFile(remoteName, localPath, sendBlockSize); err != nil {
			fmt.Println()
			return err
		}
		fmt.Printf("\rsending %s: done in %s\n", remoteName, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var fetchTimeout time.Duration

var fetchCmd = &cobra.Command{
	Use:   "fetch <remote-name> [local-file]",
	Short: "Pull a file from the device",
	Long: `Ask the device for a named file and save it locally.

The local path defaults to the remote name in the current directory. The
device streams the file in blocks; the command waits until the transfer
settles or the fetch timeout expires.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remoteName := args[0]
		localPath := filepath.Base(remoteName)
		if len(args) == 2 {
			localPath = args[1]
		}

		dev, _, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		done := make(chan error, 1)
		dev.SetTransferHandler(func(n air8000.TransferNotice) {
			switch n.Event {
			case air8000.TransferEventDataSent:
				fmt.Printf("\rfetching %s: %3d%%", remoteName, n.Progress)
			case air8000.TransferEventCompleted:
				done <- nil
			case air8000.TransferEventError:
				done <- fmt.Errorf("device reported transfer error 0x%02X", n.Code)
			case air8000.TransferEventCancelled:
				done <- fmt.Errorf("transfer cancelled")
			}
		})

		if err := dev.FetchFile(remoteName, localPath); err != nil {
			return err
		}

		select {
		case err := <-done:
			fmt.Println()
			if err != nil {
				os.Remove(localPath)
				return err
			}
			fmt.Printf("saved %s\n", localPath)
			return nil
		case <-time.After(fetchTimeout):
			fmt.Println()
			dev.CancelTransfer()
			return fmt.Errorf("transfer timed out after %s", fetchTimeout)
		}
	},
}

func init() {
	sendCmd.Flags().Uint32Var(&sendBlockSize, "block-size", 0, "Transfer block size in bytes (0 = default)")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "fetch-timeout", 2*time.Minute, "Give up after this long")

	rootCmd.AddCommand(sendCmd, fetchCmd)
}
