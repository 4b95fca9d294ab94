package wire

import (
	"errors"
	"strings"
)

// ErrBadTextCommand is returned by ParseTextCommand when the line has no
// recognizable command keyword or is missing a required argument.
var ErrBadTextCommand = errors.New("wire: bad text command")

// textOpcodes maps the ad-hoc ("telnet") keyword a human or a simple
// script would type to the binary opcode it stands in for. Every
// opcode this server implements or merely reserves has an entry here,
// mirroring the keyword set a line-oriented client could type.
var textOpcodes = map[string]byte{
	"GET":        OpGet,
	"SET":        OpSet,
	"ADD":        OpAdd,
	"REPLACE":    OpReplace,
	"DELETE":     OpDelete,
	"INCREMENT":  OpIncrement,
	"DECREMENT":  OpDecrement,
	"QUIT":       OpQuit,
	"FLUSH":      OpFlush,
	"GETQ":       OpGetQ,
	"NO-OP":      OpNoOp,
	"VERSION":    OpVersion,
	"GETK":       OpGetK,
	"GETKQ":      OpGetKQ,
	"APPEND":     OpAppend,
	"PREPEND":    OpPrepend,
	"STAT":       OpStat,
	"SETQ":       OpSetQ,
	"ADDQ":       OpAddQ,
	"REPLACEQ":   OpReplaceQ,
	"DELETEQ":    OpDeleteQ,
	"INCREMENTQ": OpIncrementQ,
	"DECREMENTQ": OpDecrementQ,
	"QUITQ":      OpQuitQ,
	"FLUSHQ":     OpFlushQ,
	"APPENDQ":    OpAppendQ,
	"PREPENDQ":   OpPrependQ,
}

// keywordsWithKey and keywordsWithValue name the commands that take a
// key argument and a value argument respectively, matching the
// original telnet parser's per-keyword argument lists.
var keywordsWithKey = map[string]bool{
	"GET": true, "SET": true, "ADD": true, "REPLACE": true, "DELETE": true,
}

var keywordsWithValue = map[string]bool{
	"SET": true, "ADD": true, "REPLACE": true,
}

// ParseTextCommand turns one line of whitespace-separated text
// (e.g. "SET foo bar" or "GET foo") into the equivalent request
// Packet, the same structure the binary codec would have decoded.
// This is the line-oriented ("telnet") interface a plain TCP client can
// speak without building binary frames.
func ParseTextCommand(line string) (*Packet, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrBadTextCommand
	}

	keyword := strings.ToUpper(fields[0])
	opcode, ok := textOpcodes[keyword]
	if !ok {
		return nil, ErrBadTextCommand
	}

	args := fields[1:]
	req := NewRequest(opcode)

	if keywordsWithKey[keyword] {
		if len(args) < 1 {
			return nil, ErrBadTextCommand
		}
		req.Key = []byte(args[0])
		args = args[1:]
	}

	if keywordsWithValue[keyword] {
		if len(args) < 1 {
			return nil, ErrBadTextCommand
		}
		req.Value = []byte(strings.Join(args, " "))
	}

	return req, nil
}
