package kernel

import "fmt"

// ErrorCode identifies a kernel error. The high byte is the group, the low
// byte the code within it.
type ErrorCode uint16

// ErrorGroup is the high byte of an ErrorCode.
type ErrorGroup uint8

const (
	GroupGeneral ErrorGroup = iota
	GroupMem
	GroupDev
	GroupThread
	GroupSync
)

const groupSize = 0x100

const (
	ErrGeneral ErrorCode = ErrorCode(GroupGeneral)*groupSize + iota
	ErrWrongContext
	ErrUndefinedInstruction
	ErrInvalidSysCall
	ErrObjectNotFound
	ErrInvalidMagic
	ErrVectorReadFault
	ErrHardFault
	ErrStackingFailed
	ErrUnstackingFailed
	ErrDataBus
	ErrInstructionBus
	ErrDivisionByZero
	ErrUnalignedAccess
	ErrNoCoprocessor
	ErrInvalidState
	ErrSysCallIRQDisabled
)

const (
	ErrMem ErrorCode = ErrorCode(GroupMem)*groupSize + iota
	ErrPointerOutOfPool
	ErrRangeCheck
	ErrOutOfSystemMemory
	ErrOutOfStackMemory
	ErrOutOfHeap
	ErrDataAccess
	ErrInstructionAccess
)

const (
	ErrDev ErrorCode = ErrorCode(GroupDev)*groupSize + iota
	ErrDevIndexOutOfRange
	ErrDevNotPresent
	ErrDevStartFailed
	ErrDevNotActive
)

const (
	ErrThread ErrorCode = ErrorCode(GroupThread)*groupSize + iota
	ErrThreadOutOfContext
	ErrIdleCall
)

const (
	ErrSync ErrorCode = ErrorCode(GroupSync)*groupSize + iota
	ErrSyncWrongUnlocker
	ErrSyncAlreadyOwned
	ErrSyncAlreadyUnlocked
)

var errorText = [...][]string{
	GroupGeneral: {
		"Abstract general error",
		"Wrong context",
		"Undefined instruction",
		"Invalid sys call",
		"Object not found",
		"Invalid magic",
		"Vector table read fault",
		"Hard fault",
		"Stacking failed",
		"Unstacking failed",
		"Data bus error",
		"Instruction bus error",
		"Division by zero",
		"Unaligned access",
		"No coprocessor found",
		"Invalid state",
		"SYS call, while interrupts are disabled",
	},
	GroupMem: {
		"Abstract memory error",
		"Pointer outside of memory pool",
		"Range check failed",
		"Out of system memory",
		"Out of stack memory",
		"Out of heap",
		"Data access violation",
		"Instruction access violation",
	},
	GroupDev: {
		"Abstract device error",
		"Device index out of range",
		"Device not present",
		"Device failed to start",
		"Device is not active",
	},
	GroupThread: {
		"Abstract thread error",
		"Thread out of context",
		"Invalid call in IDLE thread",
	},
	GroupSync: {
		"Abstract sync object error",
		"Wrong unlocker for sync object",
		"Sync object already owned by caller",
		"Sync object already unlocked",
	},
}

// Group returns the error group.
func (c ErrorCode) Group() ErrorGroup { return ErrorGroup(c / groupSize) }

func (c ErrorCode) String() string {
	g, i := int(c/groupSize), int(c%groupSize)
	if g < len(errorText) && i < len(errorText[g]) {
		return errorText[g][i]
	}
	return fmt.Sprintf("error 0x%x", uint16(c))
}

func (c ErrorCode) Error() string { return c.String() }

func (g ErrorGroup) String() string {
	switch g {
	case GroupGeneral:
		return "general"
	case GroupMem:
		return "mem"
	case GroupDev:
		return "dev"
	case GroupThread:
		return "thread"
	case GroupSync:
		return "sync"
	default:
		return "unknown"
	}
}

// DeviceClass names the device reporting an error on the device path.
type DeviceClass uint8

const (
	DevSys DeviceClass = iota
	DevFlash
	DevTimer
	DevUART
	DevSPI
	DevGPIO
	DevVideo
	DevADC
	DevDAC
	DevCAN
	DevI2C
	DevUSB
	DevETH
	DevSDIO
	DevWDT
	DevRTC
)

var deviceNames = [...]string{"SYS", "FLASH", "TIMER", "UART", "SPI", "GPIO", "VIDEO", "ADC", "DAC", "CAN", "I2C", "USB", "ETH", "SDIO", "WDT", "RTC"}

func (d DeviceClass) String() string {
	if int(d) < len(deviceNames) {
		return deviceNames[d]
	}
	return "DEV"
}

// FatalError describes an error the kernel cannot recover from.
type FatalError struct {
	Code ErrorCode
	// Where names the object kind or subsystem that detected it.
	Where string
	// Thread is the name of the thread current at the time, if any.
	Thread string
	Stack  []byte
}

func (e *FatalError) Error() string {
	if e.Where != "" {
		return "FATAL: " + e.Where + ": " + e.Code.String()
	}
	return "FATAL: " + e.Code.String()
}

func (e *FatalError) Unwrap() error { return e.Code }

// ThreadError describes a non-fatal error. The thread that caused it has
// been terminated.
type ThreadError struct {
	Code   ErrorCode
	Thread string
	ID     ThreadID
	// Device and Index are set for errors raised on the device path.
	Device DeviceClass
	Index  int
}

func (e *ThreadError) Error() string {
	if e.Code.Group() == GroupDev {
		return fmt.Sprintf("%s: %s%d: %s", e.Thread, e.Device, e.Index, e.Code)
	}
	return e.Thread + ": " + e.Code.String()
}

func (e *ThreadError) Unwrap() error { return e.Code }
