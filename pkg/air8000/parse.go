// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"fmt"
	"strings"
)

// Version is the device firmware version.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
	Build string
}

// String formats the version as major.minor.patch[+build].
func (v Version) String() string {
	if v.Build == "" {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("%d.%d.%d+%s", v.Major, v.Minor, v.Patch, v.Build)
}

// NetworkStatus is the cellular modem state.
type NetworkStatus struct {
	CSQ      uint8 // signal quality 0-31
	RSSI     int8  // dBm
	RSRP     int8  // dBm
	Status   uint8
	Operator uint8
	ICCID    string
	IP       string
}

// PowerADC carries the supply rail readings in millivolts.
type PowerADC struct {
	V12mV  uint16
	VBatmV uint16
}

// SensorData is the combined environmental reading.
type SensorData struct {
	Temperature float32 // degrees C
	Humidity    uint8   // percent
	Light       uint8   // 0-255
	Battery     uint8   // percent
}

// MotorState is one entry of the all-motors status reply.
type MotorState struct {
	ID     uint8
	Action uint8
	Speed  uint16
}

// MotorInfo is the full controller snapshot from a refresh reply.
type MotorInfo struct {
	ID        uint8
	Position  float32 // rad
	Velocity  float32 // rad/s
	Torque    float32 // Nm
	TempMOS   uint8   // degrees C
	TempRotor uint8   // degrees C
	ErrorCode uint8
	Enabled   bool
}

// WatchdogConfig sets the heartbeat watchdog parameters.
type WatchdogConfig struct {
	Enable      bool
	TimeoutSec  uint16
	PowerOffSec uint8
}

// WatchdogStatus is the watchdog state reply.
type WatchdogStatus struct {
	Enable       bool
	TimeoutSec   uint16
	PowerOffSec  uint8
	RemainingSec uint16
	ResetCount   uint8
}

// ParseVersion decodes a version reply: major, minor, patch bytes followed
// by an optional build string.
func ParseVersion(data []byte) (*Version, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: version reply %d bytes", ErrProtocol, len(data))
	}
	v := &Version{Major: data[0], Minor: data[1], Patch: data[2]}
	if len(data) > 3 {
		v.Build = strings.TrimRight(string(data[3:]), "\x00")
	}
	return v, nil
}

// ParseNetworkStatus decodes a network query reply: csq, rssi, rsrp,
// status, operator bytes, a 20-character ICCID, then the IP string.
func ParseNetworkStatus(data []byte) (*NetworkStatus, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: network reply %d bytes", ErrProtocol, len(data))
	}
	n := &NetworkStatus{
		CSQ:      data[0],
		RSSI:     int8(data[1]),
		RSRP:     int8(data[2]),
		Status:   data[3],
		Operator: data[4],
	}
	if len(data) >= 25 {
		n.ICCID = strings.TrimRight(string(data[5:25]), "\x00")
	}
	if len(data) > 25 {
		n.IP = strings.TrimRight(string(data[25:]), "\x00")
	}
	return n, nil
}

// ParsePowerADC decodes a power query reply: 12V rail and battery rail,
// u16 millivolts each.
func ParsePowerADC(data []byte) (*PowerADC, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: power reply %d bytes", ErrProtocol, len(data))
	}
	return &PowerADC{
		V12mV:  getU16(data[0:2]),
		VBatmV: getU16(data[2:4]),
	}, nil
}

// ParseSensorData decodes a read-all-sensors reply. Temperature is a u16
// in tenths of a degree.
func ParseSensorData(data []byte) (*SensorData, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: sensor reply %d bytes", ErrProtocol, len(data))
	}
	return &SensorData{
		Temperature: float32(getU16(data[0:2])) / 10,
		Humidity:    data[2],
		Light:       data[3],
		Battery:     data[4],
	}, nil
}

// ParseMotorStates decodes an all-motors reply: a count byte then
// count x (id, action, speed u16) entries.
func ParseMotorStates(data []byte) ([]MotorState, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty motor status reply", ErrProtocol)
	}
	count := int(data[0])
	if len(data) < 1+count*4 {
		return nil, fmt.Errorf("%w: motor status reply %d bytes for %d motors", ErrProtocol, len(data), count)
	}
	states := make([]MotorState, count)
	for i := 0; i < count; i++ {
		off := 1 + i*4
		states[i] = MotorState{
			ID:     data[off],
			Action: data[off+1],
			Speed:  getU16(data[off+2 : off+4]),
		}
	}
	return states, nil
}

// parseMotorFloat decodes a (motor id, float32) reply, the shape of
// position and register-style responses.
func parseMotorFloat(data []byte) (uint8, float32, error) {
	if len(data) < 5 {
		return 0, 0, fmt.Errorf("%w: motor reply %d bytes", ErrProtocol, len(data))
	}
	return data[0], getF32(data[1:5]), nil
}

// parseMotorReg decodes a register read reply: motor id, register id,
// float32 value.
func parseMotorReg(data []byte) (uint8, uint8, float32, error) {
	if len(data) < 6 {
		return 0, 0, 0, fmt.Errorf("%w: register reply %d bytes", ErrProtocol, len(data))
	}
	return data[0], data[1], getF32(data[2:6]), nil
}

// parseMotorInfo decodes a refresh reply: id, position, velocity, torque
// (float32 each), MOS and rotor temperatures, error code, enabled flag.
func parseMotorInfo(data []byte) (*MotorInfo, error) {
	if len(data) < 17 {
		return nil, fmt.Errorf("%w: refresh reply %d bytes", ErrProtocol, len(data))
	}
	return &MotorInfo{
		ID:        data[0],
		Position:  getF32(data[1:5]),
		Velocity:  getF32(data[5:9]),
		Torque:    getF32(data[9:13]),
		TempMOS:   data[13],
		TempRotor: data[14],
		ErrorCode: data[15],
		Enabled:   data[16] != 0,
	}, nil
}

// parseWatchdogStatus decodes a watchdog status reply: enable flag,
// timeout u16, power-off byte, remaining u16, reset count.
func parseWatchdogStatus(data []byte) (*WatchdogStatus, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("%w: watchdog reply %d bytes", ErrProtocol, len(data))
	}
	return &WatchdogStatus{
		Enable:       data[0] != 0,
		TimeoutSec:   getU16(data[1:3]),
		PowerOffSec:  data[3],
		RemainingSec: getU16(data[4:6]),
		ResetCount:   data[6],
	}, nil
}
