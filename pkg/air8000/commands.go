// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"fmt"
	"time"
)

// Motor control modes for Enable. The controller defaults to combined
// position-velocity control.
const (
	MotorModeMIT      = 0
	MotorModePosition = 1
	MotorModePosVel   = 2
	MotorModeVelocity = 3
)

// ============================================================
// System commands
// ============================================================

// Ping checks device liveness.
func (d *Device) Ping(timeout time.Duration) error {
	_, err := d.request(CmdSysPing, nil, timeout)
	return err
}

// GetVersion reads the firmware version.
func (d *Device) GetVersion(timeout time.Duration) (*Version, error) {
	resp, err := d.request(CmdSysVersion, nil, timeout)
	if err != nil {
		return nil, err
	}
	return ParseVersion(resp.Data)
}

// Reset reboots the device.
func (d *Device) Reset(timeout time.Duration) error {
	_, err := d.request(CmdSysReset, nil, timeout)
	return err
}

// SetRTC sets the device real-time clock from t, as u32 Unix seconds.
func (d *Device) SetRTC(t time.Time, timeout time.Duration) error {
	buf := make([]byte, 4)
	putU32(buf, uint32(t.Unix()))
	_, err := d.request(CmdSysSetRTC, buf, timeout)
	return err
}

// GetRTC reads the device real-time clock.
func (d *Device) GetRTC(timeout time.Duration) (time.Time, error) {
	resp, err := d.request(CmdSysGetRTC, nil, timeout)
	if err != nil {
		return time.Time{}, err
	}
	if len(resp.Data) < 4 {
		return time.Time{}, fmt.Errorf("%w: rtc reply %d bytes", ErrProtocol, len(resp.Data))
	}
	return time.Unix(int64(getU32(resp.Data[0:4])), 0), nil
}

// ConfigureWatchdog sets the heartbeat watchdog parameters. When enabled
// the device power-cycles the host if no heartbeat arrives in time.
func (d *Device) ConfigureWatchdog(cfg WatchdogConfig, timeout time.Duration) error {
	buf := make([]byte, 4)
	if cfg.Enable {
		buf[0] = 1
	}
	putU16(buf[1:3], cfg.TimeoutSec)
	buf[3] = cfg.PowerOffSec
	_, err := d.request(CmdSysWdtConfig, buf, timeout)
	return err
}

// WatchdogStatus reads the watchdog state.
func (d *Device) WatchdogStatus(timeout time.Duration) (*WatchdogStatus, error) {
	resp, err := d.request(CmdSysWdtStatus, nil, timeout)
	if err != nil {
		return nil, err
	}
	return parseWatchdogStatus(resp.Data)
}

// WatchdogHeartbeat resets the watchdog timer. The device treats any frame
// as a heartbeat, so a ping suffices.
func (d *Device) WatchdogHeartbeat(timeout time.Duration) error {
	return d.Ping(timeout)
}

// ============================================================
// Query commands
// ============================================================

// QueryPower reads the supply rail voltages.
func (d *Device) QueryPower(timeout time.Duration) (*PowerADC, error) {
	resp, err := d.request(CmdQueryPower, nil, timeout)
	if err != nil {
		return nil, err
	}
	return ParsePowerADC(resp.Data)
}

// QueryStatus reads the raw device status blob.
func (d *Device) QueryStatus(timeout time.Duration) ([]byte, error) {
	resp, err := d.request(CmdQueryStatus, nil, timeout)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// QueryNetwork reads the cellular modem state.
func (d *Device) QueryNetwork(timeout time.Duration) (*NetworkStatus, error) {
	resp, err := d.request(CmdQueryNetwork, nil, timeout)
	if err != nil {
		return nil, err
	}
	return ParseNetworkStatus(resp.Data)
}

// ============================================================
// Motor commands
// ============================================================

// MotorEnable powers a motor controller in the given mode.
func (d *Device) MotorEnable(motorID uint8, mode uint8, timeout time.Duration) error {
	_, err := d.request(CmdMotorEnable, []byte{motorID, mode}, timeout)
	return err
}

// MotorDisable powers a motor controller down.
func (d *Device) MotorDisable(motorID uint8, timeout time.Duration) error {
	_, err := d.request(CmdMotorDisable, []byte{motorID}, timeout)
	return err
}

// MotorStop halts a motor immediately.
func (d *Device) MotorStop(motorID uint8, timeout time.Duration) error {
	_, err := d.request(CmdMotorStop, []byte{motorID}, timeout)
	return err
}

// MotorRotate moves a motor to an absolute angle in radians at velocity
// rad/s.
func (d *Device) MotorRotate(motorID uint8, angle, velocity float32, timeout time.Duration) error {
	buf := make([]byte, 9)
	buf[0] = motorID
	putF32(buf[1:5], angle)
	putF32(buf[5:9], velocity)
	_, err := d.request(CmdMotorRotate, buf, timeout)
	return err
}

// MotorRotateRel moves a motor by a relative angle in radians.
func (d *Device) MotorRotateRel(motorID uint8, angle, velocity float32, timeout time.Duration) error {
	buf := make([]byte, 9)
	buf[0] = motorID
	putF32(buf[1:5], angle)
	putF32(buf[5:9], velocity)
	_, err := d.request(CmdMotorRotateRel, buf, timeout)
	return err
}

// MotorSetVelocity spins a motor at a constant velocity in rad/s.
func (d *Device) MotorSetVelocity(motorID uint8, velocity float32, timeout time.Duration) error {
	buf := make([]byte, 5)
	buf[0] = motorID
	putF32(buf[1:5], velocity)
	_, err := d.request(CmdMotorSetVel, buf, timeout)
	return err
}

// MotorSetOrigin declares the current position as zero.
func (d *Device) MotorSetOrigin(motorID uint8, timeout time.Duration) error {
	_, err := d.request(CmdMotorSetOrigin, []byte{motorID}, timeout)
	return err
}

// MotorGetPosition reads the current position in radians.
func (d *Device) MotorGetPosition(motorID uint8, timeout time.Duration) (float32, error) {
	resp, err := d.request(CmdMotorGetPos, []byte{motorID}, timeout)
	if err != nil {
		return 0, err
	}
	_, pos, err := parseMotorFloat(resp.Data)
	return pos, err
}

// MotorGetAll reads the status of every motor.
func (d *Device) MotorGetAll(timeout time.Duration) ([]MotorState, error) {
	resp, err := d.request(CmdMotorGetAll, nil, timeout)
	if err != nil {
		return nil, err
	}
	return ParseMotorStates(resp.Data)
}

// MotorReadReg reads one motor controller register.
func (d *Device) MotorReadReg(motorID, reg uint8, timeout time.Duration) (float32, error) {
	resp, err := d.request(CmdMotorReadReg, []byte{motorID, reg}, timeout)
	if err != nil {
		return 0, err
	}
	_, _, val, err := parseMotorReg(resp.Data)
	return val, err
}

// MotorWriteReg writes one motor controller register. Persist with
// MotorSaveFlash.
func (d *Device) MotorWriteReg(motorID, reg uint8, value float32, timeout time.Duration) error {
	buf := make([]byte, 6)
	buf[0] = motorID
	buf[1] = reg
	putF32(buf[2:6], value)
	_, err := d.request(CmdMotorWriteReg, buf, timeout)
	return err
}

// MotorSaveFlash persists the controller registers to flash.
func (d *Device) MotorSaveFlash(motorID uint8, timeout time.Duration) error {
	_, err := d.request(CmdMotorSaveFlash, []byte{motorID}, timeout)
	return err
}

// MotorRefresh reads the full controller snapshot.
func (d *Device) MotorRefresh(motorID uint8, timeout time.Duration) (*MotorInfo, error) {
	resp, err := d.request(CmdMotorRefresh, []byte{motorID}, timeout)
	if err != nil {
		return nil, err
	}
	return parseMotorInfo(resp.Data)
}

// MotorClearError clears a latched controller fault.
func (d *Device) MotorClearError(motorID uint8, timeout time.Duration) error {
	_, err := d.request(CmdMotorClearError, []byte{motorID}, timeout)
	return err
}

// MotorPower switches the motor supply rail.
func (d *Device) MotorPower(on bool, timeout time.Duration) error {
	state := byte(StateOff)
	if on {
		state = StateOn
	}
	_, err := d.request(CmdDevMotorPower, []byte{state}, timeout)
	return err
}

// ============================================================
// Sensor commands
// ============================================================

// SensorReadTemp reads one temperature sensor in degrees C. The reply
// carries the sensor ID followed by a big-endian float32.
func (d *Device) SensorReadTemp(sensorID uint8, timeout time.Duration) (float32, error) {
	resp, err := d.request(CmdSensorReadTemp, []byte{sensorID}, timeout)
	if err != nil {
		return 0, err
	}
	_, temp, err := parseMotorFloat(resp.Data)
	if err != nil {
		return 0, err
	}
	return temp, nil
}

// SensorReadAll reads the combined environmental sensors.
func (d *Device) SensorReadAll(timeout time.Duration) (*SensorData, error) {
	resp, err := d.request(CmdSensorReadAll, nil, timeout)
	if err != nil {
		return nil, err
	}
	return ParseSensorData(resp.Data)
}

// ============================================================
// Device commands
// ============================================================

// DeviceControl switches a peripheral: cmd selects the peripheral class
// (CmdDevHeater, CmdDevFan, CmdDevLED, CmdDevLaser, CmdDevPWMLight),
// state is StateOff, StateOn, or StateBlink.
func (d *Device) DeviceControl(cmd Command, deviceID, state uint8, timeout time.Duration) error {
	_, err := d.request(cmd, []byte{deviceID, state}, timeout)
	return err
}

// DeviceGetState reads a peripheral's current state byte.
func (d *Device) DeviceGetState(deviceID uint8, timeout time.Duration) (uint8, error) {
	resp, err := d.request(CmdDevGetState, []byte{deviceID}, timeout)
	if err != nil {
		return 0, err
	}
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("%w: empty state reply", ErrProtocol)
	}
	if len(resp.Data) >= 2 {
		return resp.Data[1], nil
	}
	return resp.Data[0], nil
}
