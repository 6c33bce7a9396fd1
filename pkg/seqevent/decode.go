package seqevent

import "github.com/falk/ndsfmt-go/pkg/ndserr"

// decodeOne decodes the single event at data[pos]. Address operands are
// stored as raw file offsets in the returned event's Target field(s); the
// caller (lift) is responsible for rewriting them to arena indices once the
// full offset->index map is known.
func decodeOne(data []byte, pos int) (Event, int, error) {
	if pos >= len(data) {
		return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "event opcode out of range")
	}
	op := data[pos]

	switch {
	case op < OpRestMax:
		if pos+2 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "note event truncated")
		}
		velByte := data[pos+1]
		dur, n, err := peekVarIntOrErr(data, pos+2)
		if err != nil {
			return nil, 0, err
		}
		ev := &NoteEvent{
			Note:        op,
			Velocity:    velByte & 0x7F,
			UnknownFlag: velByte&0x80 != 0,
			Duration:    dur,
		}
		return ev, 2 + n, nil

	case op == OpRestMax:
		dur, n, err := peekVarIntOrErr(data, pos+1)
		if err != nil {
			return nil, 0, err
		}
		return &RestEvent{Duration: dur}, 1 + n, nil

	case op == OpInstrumentSwitch:
		val, n, err := peekVarIntOrErr(data, pos+1)
		if err != nil {
			return nil, 0, err
		}
		return &InstrumentSwitchEvent{Value: val}, 1 + n, nil

	case op == OpBeginTrack:
		if pos+5 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "BeginTrack truncated")
		}
		track := data[pos+1]
		addr := u24(data, pos+2)
		return &BeginTrackEvent{Track: track, Target: int(addr)}, 5, nil

	case op == OpJump:
		if pos+4 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "Jump truncated")
		}
		addr := u24(data, pos+1)
		return &JumpEvent{Target: int(addr)}, 4, nil

	case op == OpCall:
		if pos+4 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "Call truncated")
		}
		addr := u24(data, pos+1)
		return &CallEvent{Target: int(addr)}, 4, nil

	case op == OpRandom:
		if pos+2 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "Random truncated")
		}
		sub := data[pos+1]
		opLen, ok := fixedOperandLen(sub)
		if !ok {
			return nil, 0, ndserr.At(ndserr.MalformedSSEQ, pos, "Random sub-opcode has no fixed operand width")
		}
		total := 2 + opLen + 4
		if pos+total > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "Random truncated")
		}
		payload := append([]byte(nil), data[pos+2:pos+2+opLen]...)
		min := int16(u16(data, pos+2+opLen))
		max := int16(u16(data, pos+4+opLen))
		return &RandomEvent{Sub: sub, Payload: payload, Min: min, Max: max}, total, nil

	case op == OpFromVariable:
		if pos+2 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "FromVariable truncated")
		}
		sub := data[pos+1]
		opLen, ok := fixedOperandLen(sub)
		if !ok || opLen == 0 {
			return nil, 0, ndserr.At(ndserr.MalformedSSEQ, pos, "FromVariable sub-opcode has no reinterpretable operand byte")
		}
		extra := opLen - 1
		total := 2 + extra + 1
		if pos+total > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "FromVariable truncated")
		}
		extraBytes := append([]byte(nil), data[pos+2:pos+2+extra]...)
		varID := data[pos+2+extra]
		return &FromVariableEvent{Sub: sub, Extra: extraBytes, VarID: varID}, total, nil

	case op == OpIf:
		return &IfEvent{}, 1, nil

	case op >= OpVariableRangeStart && op <= OpVariableRangeEnd:
		if pos+4 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "variable op truncated")
		}
		varID := data[pos+1]
		val := int16(u16(data, pos+2))
		return &VariableOpEvent{Op: op, VarID: varID, Value: val}, 4, nil

	case op >= OpByteCtrlRangeStart && op <= OpByteCtrlRangeEnd:
		if pos+2 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "byte controller truncated")
		}
		return &ByteControllerEvent{Op: op, Value: data[pos+1]}, 2, nil

	case op >= OpInt16CtrlRangeStart && op <= OpInt16CtrlRangeEnd:
		if pos+3 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "int16 controller truncated")
		}
		return &Int16ControllerEvent{Op: op, Value: int16(u16(data, pos+1))}, 3, nil

	case op == OpEndLoop:
		return &EndLoopEvent{}, 1, nil

	case op == OpReturn:
		return &ReturnEvent{}, 1, nil

	case op == OpDefineTracks:
		if pos+3 > len(data) {
			return nil, 0, ndserr.At(ndserr.OutOfBounds, pos, "DefineTracks truncated")
		}
		return &DefineTracksEvent{Mask: u16(data, pos+1)}, 3, nil

	case op == OpEndTrack:
		return &EndTrackEvent{}, 1, nil

	default:
		return nil, 0, ndserr.At(ndserr.MalformedSSEQ, pos, "unsupported or reserved opcode")
	}
}

func u16(data []byte, pos int) uint16 {
	return uint16(data[pos]) | uint16(data[pos+1])<<8
}

func u24(data []byte, pos int) uint32 {
	return uint32(data[pos]) | uint32(data[pos+1])<<8 | uint32(data[pos+2])<<16
}

func peekVarIntOrErr(data []byte, pos int) (uint32, int, error) {
	v, n, ok := peekVarInt(data, pos)
	if !ok {
		return 0, 0, ndserr.At(ndserr.OutOfBounds, pos, "variable-length integer truncated")
	}
	return v, n, nil
}
