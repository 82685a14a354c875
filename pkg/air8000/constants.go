// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

// Package air8000 implements the host side of the Air8000 serial protocol.
//
// The Air8000 is a cellular MCU that owns the motors, sensors, and power
// peripherals of the camera head. The host talks to it over a UART link
// using binary frames with an 0xAA 0x55 sync header and a MODBUS CRC16
// trailer. This package provides the frame codec, request/response
// correlation, a background I/O loop with automatic reconnection, and the
// chunked file-transfer and firmware-update state machines built on top.
package air8000

// Frame layout
const (
	Sync1 = 0xAA
	Sync2 = 0x55

	// ProtocolVersion is V1.0, encoded as 0x10.
	ProtocolVersion = 0x10

	HeaderSize   = 9
	CRCSize      = 2
	MinFrameSize = HeaderSize + CRCSize
)

// FrameType discriminates the five wire frame kinds.
type FrameType uint8

// Frame types
const (
	FrameRequest  FrameType = 0x00 // host -> device command
	FrameResponse FrameType = 0x01 // device reply carrying data
	FrameNotify   FrameType = 0x02 // unsolicited device -> host update
	FrameAck      FrameType = 0x03 // bare positive reply
	FrameNack     FrameType = 0x04 // request rejected
)

// String returns the frame type mnemonic.
func (t FrameType) String() string {
	switch t {
	case FrameRequest:
		return "REQUEST"
	case FrameResponse:
		return "RESPONSE"
	case FrameNotify:
		return "NOTIFY"
	case FrameAck:
		return "ACK"
	case FrameNack:
		return "NACK"
	default:
		return "UNKNOWN"
	}
}

// Command identifies an operation, grouped by the high byte.
type Command uint16

// System commands (0x00xx)
const (
	CmdSysPing      Command = 0x0001
	CmdSysVersion   Command = 0x0002
	CmdSysReset     Command = 0x0003
	CmdSysSleep     Command = 0x0004
	CmdSysWakeup    Command = 0x0005
	CmdSysWdtConfig Command = 0x0006
	CmdSysWdtStatus Command = 0x0007
	CmdSysPoweroff  Command = 0x0008
	CmdSysSetRTC    Command = 0x0010
	CmdSysGetRTC    Command = 0x0011
	CmdSysTempCtrl  Command = 0x0020
)

// Query commands (0x01xx)
const (
	CmdQueryPower   Command = 0x0101
	CmdQueryStatus  Command = 0x0102
	CmdQueryNetwork Command = 0x0103
)

// Motor commands (0x30xx)
const (
	CmdMotorRotate    Command = 0x3001
	CmdMotorEnable    Command = 0x3002
	CmdMotorDisable   Command = 0x3003
	CmdMotorStop      Command = 0x3004
	CmdMotorSetOrigin Command = 0x3005
	CmdMotorGetPos    Command = 0x3006
	CmdMotorSetVel    Command = 0x3007
	CmdMotorRotateRel Command = 0x3008
	CmdMotorGetAll    Command = 0x3100
)

// Motor parameter commands (0x31xx)
const (
	CmdMotorReadReg    Command = 0x3101
	CmdMotorWriteReg   Command = 0x3102
	CmdMotorSaveFlash  Command = 0x3103
	CmdMotorRefresh    Command = 0x3104
	CmdMotorClearError Command = 0x3105
)

// Sensor commands (0x40xx)
const (
	CmdSensorReadTemp Command = 0x4001
	CmdSensorReadAll  Command = 0x4002
	CmdSensorConfig   Command = 0x4010
)

// Device commands (0x50xx)
const (
	CmdDevHeater     Command = 0x5001
	CmdDevFan        Command = 0x5002
	CmdDevLED        Command = 0x5003
	CmdDevLaser      Command = 0x5004
	CmdDevPWMLight   Command = 0x5005
	CmdDevMotorPower Command = 0x5006
	CmdDevGetState   Command = 0x5010
)

// FOTA commands (0x601x)
const (
	CmdOTAStart  Command = 0x6010
	CmdOTAData   Command = 0x6011
	CmdOTAFinish Command = 0x6012
	CmdOTAAbort  Command = 0x6013
	CmdOTAStatus Command = 0x6014
)

// File transfer commands (0x602x). Request/Ack/Complete/Error/Cancel flow
// host -> device; Data/Status/Start flow device -> host when the device is
// the sender.
const (
	CmdFileRequest  Command = 0x6020
	CmdFileAck      Command = 0x6021
	CmdFileComplete Command = 0x6022
	CmdFileError    Command = 0x6023
	CmdFileCancel   Command = 0x6024
	CmdFileData     Command = 0x6025
	CmdFileStatus   Command = 0x6026
	CmdFileStart    Command = 0x6027
)

// Motor IDs
const (
	MotorY   = 0x01
	MotorX   = 0x02
	MotorZ   = 0x03
	MotorAll = 0xFF
)

// Device IDs
const (
	DeviceHeater1  = 0x01
	DeviceHeater2  = 0x02
	DeviceFan1     = 0x10
	DeviceLED      = 0x20
	DeviceLaser    = 0x30
	DevicePWMLight = 0x40
)

// Device states
const (
	StateOff   = 0x00
	StateOn    = 0x01
	StateBlink = 0x02
)

// Nack error codes reported by the device.
const (
	DevErrUnknownCmd   = 0x01
	DevErrInvalidParam = 0x02
	DevErrBusy         = 0x03
	DevErrNotReady     = 0x04
	DevErrExecFailed   = 0x05
	DevErrTimeout      = 0x06
	DevErrCRC          = 0x07
	DevErrVersion      = 0x08
)

// Motor controller register addresses for CmdMotorReadReg/CmdMotorWriteReg.
const (
	RegUVValue  = 0x00
	RegKTValue  = 0x01
	RegOTValue  = 0x02
	RegOCValue  = 0x03
	RegAcc      = 0x04
	RegDec      = 0x05
	RegMaxSpd   = 0x06
	RegMstID    = 0x07
	RegEscID    = 0x08
	RegTimeout  = 0x09
	RegCtrlMode = 0x0A
	RegPMax     = 0x15
	RegVMax     = 0x16
	RegTMax     = 0x17
	RegIBW      = 0x18
	RegKpASR    = 0x19
	RegKiASR    = 0x1A
	RegKpAPR    = 0x1B
	RegKiAPR    = 0x1C
	RegOVValue  = 0x1D
	RegPosition = 0x50 // read-only
	RegVelocity = 0x51 // read-only
	RegTorque   = 0x52 // read-only
)
