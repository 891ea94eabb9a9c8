package core

import (
	"fmt"
	"math/bits"
	"strings"
)

// Kind classifies one fault occurrence. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindTrap
	KindUnhandled
	KindPureCall
	KindAllocation
	KindBufferOverrun
	KindInvalidArgument
	KindSigAbort
	KindSigFPE
	KindSigIll
	KindSigInt
	KindSigSegv
	KindSigTerm

	// Synthetic kinds, raised only by fault injection.
	KindNonContinuable
	KindThrow
	KindStackOverflow

	kindCount
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindTrap:            "trap",
	KindUnhandled:       "unhandled",
	KindPureCall:        "pure-call",
	KindAllocation:      "allocation",
	KindBufferOverrun:   "buffer-overrun",
	KindInvalidArgument: "invalid-argument",
	KindSigAbort:        "sigabrt",
	KindSigFPE:          "sigfpe",
	KindSigIll:          "sigill",
	KindSigInt:          "sigint",
	KindSigSegv:         "sigsegv",
	KindSigTerm:         "sigterm",
	KindNonContinuable:  "noncontinuable",
	KindThrow:           "throw",
	KindStackOverflow:   "stack-overflow",
}

var kindDescriptions = [...]string{
	KindUnknown:         "unclassified fault",
	KindTrap:            "hardware fault",
	KindUnhandled:       "panic without handler",
	KindPureCall:        "dynamic dispatch on incomplete object",
	KindAllocation:      "allocation exhaustion",
	KindBufferOverrun:   "buffer overrun",
	KindInvalidArgument: "invalid argument",
	KindSigAbort:        "abnormal termination signal",
	KindSigFPE:          "floating point trap signal",
	KindSigIll:          "illegal instruction signal",
	KindSigInt:          "interrupt signal",
	KindSigSegv:         "invalid memory access signal",
	KindSigTerm:         "termination request signal",
	KindNonContinuable:  "noncontinuable software exception",
	KindThrow:           "typed throw without handler",
	KindStackOverflow:   "stack exhaustion",
}

// String returns the short name used in file names, flags and config.
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Description returns a human-readable label for reports.
func (k Kind) Description() string {
	if k < 0 || k >= kindCount {
		return kindDescriptions[KindUnknown]
	}
	return kindDescriptions[k]
}

// IsSynthetic reports whether the kind exists only for fault injection.
func (k Kind) IsSynthetic() bool {
	return k == KindNonContinuable || k == KindThrow || k == KindStackOverflow
}

// IsSignal reports whether the kind originates from an OS signal.
func (k Kind) IsSignal() bool {
	return k >= KindSigAbort && k <= KindSigTerm
}

// Hook returns the hook that receives faults of this kind.
func (k Kind) Hook() HookKind {
	switch k {
	case KindTrap, KindNonContinuable, KindStackOverflow:
		return HookTrap
	case KindUnhandled, KindThrow:
		return HookUnhandled
	case KindPureCall:
		return HookPureCall
	case KindAllocation:
		return HookAllocation
	case KindBufferOverrun:
		return HookBufferOverrun
	case KindInvalidArgument:
		return HookInvalidArgument
	case KindSigAbort:
		return HookSigAbort
	case KindSigFPE:
		return HookSigFPE
	case KindSigIll:
		return HookSigIll
	case KindSigInt:
		return HookSigInt
	case KindSigSegv:
		return HookSigSegv
	case KindSigTerm:
		return HookSigTerm
	default:
		return 0
	}
}

// AllKinds lists every fault kind except KindUnknown.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, int(kindCount)-1)
	for k := KindTrap; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind resolves a kind by its short name.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := KindTrap; k < kindCount; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return KindUnknown, ErrCallerError(CodeUnknownKind, fmt.Sprintf("unknown fault kind %q", name))
}

// HookKind is one registration point with the runtime. Values are mask bits.
type HookKind uint32

const (
	HookTrap            HookKind = 0x0001
	HookUnhandled       HookKind = 0x0002
	hookReserved        HookKind = 0x0004 // no runtime analogue
	HookPureCall        HookKind = 0x0008
	HookAllocation      HookKind = 0x0010
	HookBufferOverrun   HookKind = 0x0020
	HookInvalidArgument HookKind = 0x0040
	HookSigAbort        HookKind = 0x0080
	HookSigFPE          HookKind = 0x0100
	HookSigIll          HookKind = 0x0200
	HookSigInt          HookKind = 0x0400
	HookSigSegv         HookKind = 0x0800
	HookSigTerm         HookKind = 0x1000
)

// Mask selects hooks for installation. Zero selects every available hook.
type Mask uint32

// MaskAll selects every hook explicitly.
const MaskAll = Mask(HookTrap | HookUnhandled | HookPureCall | HookAllocation |
	HookBufferOverrun | HookInvalidArgument | HookSigAbort | HookSigFPE |
	HookSigIll | HookSigInt | HookSigSegv | HookSigTerm)

var hookNames = map[HookKind]string{
	HookTrap:            "trap",
	HookUnhandled:       "unhandled",
	HookPureCall:        "pure-call",
	HookAllocation:      "allocation",
	HookBufferOverrun:   "buffer-overrun",
	HookInvalidArgument: "invalid-argument",
	HookSigAbort:        "sigabrt",
	HookSigFPE:          "sigfpe",
	HookSigIll:          "sigill",
	HookSigInt:          "sigint",
	HookSigSegv:         "sigsegv",
	HookSigTerm:         "sigterm",
}

func (h HookKind) String() string {
	if name, ok := hookNames[h]; ok {
		return name
	}
	return fmt.Sprintf("hook(%#x)", uint32(h))
}

// IsSignal reports whether the hook is backed by an OS signal.
func (h HookKind) IsSignal() bool {
	return h >= HookSigAbort && h <= HookSigTerm
}

// Validate rejects bits that name no hook.
func (m Mask) Validate() error {
	if extra := m &^ MaskAll; extra != 0 {
		return ErrCallerError(CodeUnknownHook, fmt.Sprintf("unknown hook bits %#x", uint32(extra)))
	}
	return nil
}

// Has reports whether the mask selects h. A zero mask selects everything.
func (m Mask) Has(h HookKind) bool {
	if m == 0 {
		return MaskAll&Mask(h) != 0
	}
	return m&Mask(h) != 0
}

// Hooks expands the mask into hook kinds in ascending bit order.
func (m Mask) Hooks() []HookKind {
	if m == 0 {
		m = MaskAll
	}
	m &= MaskAll
	hooks := make([]HookKind, 0, bits.OnesCount32(uint32(m)))
	for bit := uint32(m); bit != 0; bit &= bit - 1 {
		hooks = append(hooks, HookKind(bit&-bit))
	}
	return hooks
}

// ParseMask builds a mask from hook names. An empty list yields zero (all).
func ParseMask(names []string) (Mask, error) {
	var m Mask
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == "all" {
			return 0, nil
		}
		found := false
		for h, n := range hookNames {
			if n == name {
				m |= Mask(h)
				found = true
				break
			}
		}
		if !found {
			return 0, ErrCallerError(CodeUnknownHook, fmt.Sprintf("unknown hook %q", name))
		}
	}
	return m, nil
}
