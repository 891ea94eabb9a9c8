package core

import "fmt"

// Code is the raw fault code attached to trap-class faults. Values follow the
// well-known exception code numbering so reports read the same as native
// crash dumps.
type Code uint32

const (
	CodeNone                  Code = 0
	CodeAccessViolation       Code = 0xC0000005
	CodeInPageError           Code = 0xC0000006
	CodeIllegalInstruction    Code = 0xC000001D
	CodeNonContinuable        Code = 0xC0000025
	CodeArrayBoundsExceeded   Code = 0xC000008C
	CodeFltDivideByZero       Code = 0xC000008E
	CodeFltInvalidOperation   Code = 0xC0000090
	CodeIntDivideByZero       Code = 0xC0000094
	CodeIntOverflow           Code = 0xC0000095
	CodeStackOverflow         Code = 0xC00000FD
	CodeNoMemory              Code = 0xC0000017
	CodeInvalidParameter      Code = 0xC000000D
	CodeBufferOverrun         Code = 0xC0000409
	CodeTypedThrow            Code = 0xE06D7363
	CodeNoncontinuableRequest Code = 0xE0000001
)

var codeNames = map[Code]string{
	CodeAccessViolation:       "ACCESS_VIOLATION",
	CodeInPageError:           "IN_PAGE_ERROR",
	CodeIllegalInstruction:    "ILLEGAL_INSTRUCTION",
	CodeNonContinuable:        "NONCONTINUABLE_EXCEPTION",
	CodeArrayBoundsExceeded:   "ARRAY_BOUNDS_EXCEEDED",
	CodeFltDivideByZero:       "FLT_DIVIDE_BY_ZERO",
	CodeFltInvalidOperation:   "FLT_INVALID_OPERATION",
	CodeIntDivideByZero:       "INT_DIVIDE_BY_ZERO",
	CodeIntOverflow:           "INT_OVERFLOW",
	CodeStackOverflow:         "STACK_OVERFLOW",
	CodeNoMemory:              "NO_MEMORY",
	CodeInvalidParameter:      "INVALID_PARAMETER",
	CodeBufferOverrun:         "STACK_BUFFER_OVERRUN",
	CodeTypedThrow:            "TYPED_THROW",
	CodeNoncontinuableRequest: "NONCONTINUABLE_REQUEST",
}

// Name returns the symbolic name of the code, or "UNKNOWN_EXCEPTION".
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN_EXCEPTION"
}

func (c Code) String() string {
	return fmt.Sprintf("0x%08X %s", uint32(c), c.Name())
}

// FPESubCode refines floating point traps.
type FPESubCode int

const (
	FPEUnknown FPESubCode = iota
	FPEIntDivide
	FPEIntOverflow
	FPEFloatDivide
	FPEFloatOverflow
	FPEFloatUnderflow
	FPEFloatInexact
	FPEFloatInvalid
)

var fpeNames = [...]string{
	FPEUnknown:        "FPE_UNKNOWN",
	FPEIntDivide:      "FPE_INTDIV",
	FPEIntOverflow:    "FPE_INTOVF",
	FPEFloatDivide:    "FPE_FLTDIV",
	FPEFloatOverflow:  "FPE_FLTOVF",
	FPEFloatUnderflow: "FPE_FLTUND",
	FPEFloatInexact:   "FPE_FLTRES",
	FPEFloatInvalid:   "FPE_FLTINV",
}

func (s FPESubCode) String() string {
	if s < 0 || int(s) >= len(fpeNames) {
		return fpeNames[FPEUnknown]
	}
	return fpeNames[s]
}

// Access is the read/write indicator of an access-violation-class trap.
type Access int

const (
	AccessUnknown Access = iota
	AccessRead
	AccessWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return "access"
	}
}
