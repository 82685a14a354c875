// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems
//
// Airbridge - Air8000 MCU control tool
//
// The CV610 host side of the Air8000 UART link: system queries, motor and
// peripheral control, file transfer, and firmware updates.

package main

import (
	"os"

	"github.com/cv610/airbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
