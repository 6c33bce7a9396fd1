package seqevent

import (
	"sort"

	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

// EventList is the arena of decoded events. Address operands on individual
// events (BeginTrackEvent.Target, JumpEvent.Target, CallEvent.Target) are
// indices into Events, not file offsets.
type EventList struct {
	Events []Event
}

// span is a decoded event's byte-offset occupancy, used to detect
// overlapping events during lift.
type span struct {
	start, length int
}

// fate is the terminal outcome of following a branch to its end, mirroring
// soundSequence.py's readSequenceEvents fate tracking.
type fate int

const (
	fateInProgress fate = iota
	fateReturn
	fateLoop
	fateEOT
)

// ReadEvents lifts a flat byte stream into an EventList, starting from each
// offset in notableOffsets (e.g. a sequence's entry point, or every
// sequence-archive entry's start). It returns the EventList and a map from
// each notable offset to its resolved index in Events.
//
// Parsing follows each reachable branch until it resolves to a fate: an
// EndTrackEvent (fateEOT), a ReturnEvent (fateReturn), or a revisit of an
// offset still being resolved higher up the call stack (fateLoop). A
// JumpEvent ends its branch with its destination's fate unless the byte
// immediately before it decoded as an IfEvent ending exactly at the Jump's
// start, in which case the jump is conditional and parsing also continues
// past it (the fallthrough path). A CallEvent only continues sequentially
// past itself when its destination's fate is fateReturn; fateEOT or
// fateLoop ends the calling branch too, exactly as readSequenceEvents does.
func ReadEvents(data []byte, notableOffsets []int) (*EventList, map[int]int, error) {
	decoded := map[int]Event{}
	spans := map[int]span{}
	fates := map[int]fate{}

	checkOverlap := func(start, length int) error {
		end := start + length
		for s, sp := range spans {
			sEnd := s + sp.length
			if start < sEnd && s < end && s != start {
				return ndserr.At(ndserr.OverlappingEvents, start, "event overlaps a previously decoded event")
			}
		}
		return nil
	}

	var parseAt func(start int) (fate, error)
	parseAt = func(start int) (fate, error) {
		var sequential []int
		pos := start
		for {
			if f, already := fates[pos]; already {
				if f == fateInProgress {
					f = fateLoop
				}
				for _, o := range sequential {
					fates[o] = f
				}
				return f, nil
			}
			if pos < 0 || pos >= len(data) {
				return 0, ndserr.At(ndserr.DanglingReference, pos, "address operand resolves outside the buffer")
			}

			ev, length, err := decodeOne(data, pos)
			if err != nil {
				return 0, err
			}
			if err := checkOverlap(pos, length); err != nil {
				return 0, err
			}
			decoded[pos] = ev
			spans[pos] = span{pos, length}
			fates[pos] = fateInProgress

			switch e := ev.(type) {
			case *BeginTrackEvent:
				if _, err := parseAt(e.Target); err != nil {
					return 0, err
				}
				sequential = append(sequential, pos)
				pos += length
			case *JumpEvent:
				f, err := parseAt(e.Target)
				if err != nil {
					return 0, err
				}
				for _, o := range sequential {
					fates[o] = f
				}
				if !precededByIf(decoded, spans, pos) {
					return f, nil
				}
				sequential = append(sequential, pos)
				pos += length
			case *CallEvent:
				f, err := parseAt(e.Target)
				if err != nil {
					return 0, err
				}
				if f == fateEOT || f == fateLoop {
					fates[pos] = f
					for _, o := range sequential {
						fates[o] = f
					}
					return f, nil
				}
				// f == fateReturn: the caller keeps running sequentially.
				sequential = append(sequential, pos)
				pos += length
			case *EndTrackEvent:
				fates[pos] = fateEOT
				for _, o := range sequential {
					fates[o] = fateEOT
				}
				return fateEOT, nil
			case *ReturnEvent:
				fates[pos] = fateReturn
				for _, o := range sequential {
					fates[o] = fateReturn
				}
				return fateReturn, nil
			default:
				sequential = append(sequential, pos)
				pos += length
			}
		}
	}

	starts := notableOffsets
	if len(starts) == 0 {
		starts = []int{0}
	}
	for _, o := range starts {
		if _, err := parseAt(o); err != nil {
			return nil, nil, err
		}
	}

	offsets := make([]int, 0, len(decoded))
	for o := range decoded {
		offsets = append(offsets, o)
	}
	sort.Ints(offsets)

	list := &EventList{}
	offsetToIndex := make(map[int]int, len(offsets))
	maxCovered := 0
	for _, o := range offsets {
		offsetToIndex[o] = len(list.Events)
		list.Events = append(list.Events, decoded[o])
		if end := o + spans[o].length; end > maxCovered {
			maxCovered = end
		}
	}
	if maxCovered < len(data) {
		list.Events = append(list.Events, &RawDataEvent{Data: append([]byte(nil), data[maxCovered:]...)})
	}

	resolve := func(offset int) (int, error) {
		idx, ok := offsetToIndex[offset]
		if !ok {
			return 0, ndserr.At(ndserr.DanglingReference, offset, "address operand does not resolve to a decoded event")
		}
		return idx, nil
	}

	for _, ev := range list.Events {
		switch e := ev.(type) {
		case *BeginTrackEvent:
			idx, err := resolve(e.Target)
			if err != nil {
				return nil, nil, err
			}
			e.Target = idx
		case *JumpEvent:
			idx, err := resolve(e.Target)
			if err != nil {
				return nil, nil, err
			}
			e.Target = idx
		case *CallEvent:
			idx, err := resolve(e.Target)
			if err != nil {
				return nil, nil, err
			}
			e.Target = idx
		}
	}

	notable := make(map[int]int, len(notableOffsets))
	for _, o := range notableOffsets {
		idx, err := resolve(o)
		if err != nil {
			return nil, nil, err
		}
		notable[o] = idx
	}

	return list, notable, nil
}

// precededByIf reports whether the event ending exactly at jumpPos decoded
// as an IfEvent, marking the jump at jumpPos as conditional.
func precededByIf(decoded map[int]Event, spans map[int]span, jumpPos int) bool {
	for s, sp := range spans {
		if s+sp.length == jumpPos {
			_, ok := decoded[s].(*IfEvent)
			return ok
		}
	}
	return false
}

// SaveEvents lowers an EventList back into bytes in two passes: the first
// computes each event's encoded length to build an index->offset table, the
// second emits bytes, substituting address operands via that table. An
// address operand that is not an index into list.Events fails with
// DanglingReference.
func SaveEvents(list *EventList) ([]byte, error) {
	offsets := make([]int, len(list.Events))
	pos := 0
	for i, ev := range list.Events {
		offsets[i] = pos
		pos += ev.EncodedLen()
	}

	var dangling error
	resolve := func(idx int) int {
		if idx < 0 || idx >= len(offsets) {
			if dangling == nil {
				dangling = ndserr.At(ndserr.DanglingReference, idx, "address operand does not resolve to an event")
			}
			return 0
		}
		return offsets[idx]
	}

	w := cursor.NewWriter()
	for _, ev := range list.Events {
		ev.Encode(w, resolve)
	}
	if dangling != nil {
		return nil, dangling
	}
	return w.Bytes(), nil
}
