// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/cv610/airbridge/pkg/air8000"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("AIRBRIDGE_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// buildDialer constructs a transport dialer from the connection flags
func buildDialer() (air8000.Dialer, string, error) {
	if wsURL != "" {
		// WebSocket mode
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		dialer := air8000.WebSocketDialer(wsURL, wsUsername, password, wsNoSSLVerify)
		return dialer, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		// Serial mode
		dialer := air8000.SerialDialer(portName, baudRate)
		return dialer, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// newLogger builds the CLI logger: quiet by default, console debug output
// with --verbose
func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// openDevice opens the Air8000 device handle based on the connection flags
func openDevice() (*air8000.Device, string, error) {
	dialer, connInfo, err := buildDialer()
	if err != nil {
		return nil, "", err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, "", err
	}

	dev, err := air8000.Open(dialer, air8000.WithLogger(logger))
	if err != nil {
		return nil, "", err
	}
	return dev, connInfo, nil
}
