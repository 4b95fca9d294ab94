// Package wire implements the memcached binary protocol: a fixed 24-byte
// header codec (Encode/Decode), the ad-hoc text ("telnet") command
// parser, and the opcode dispatcher that turns either one into a call
// against a cache engine.
//
// Header layout (big-endian throughout), followed by extras ∥ key ∥ value:
//
//	offset  size  field
//	0       1     magic            0x80 request, 0x81 response
//	1       1     opcode
//	2       2     key_length
//	4       1     extras_length
//	5       1     data_type        reserved, always 0
//	6       2     status           response only; reserved in requests
//	8       4     total_body_length = extras_length + key_length + value_length
//	12      4     opaque           echoed verbatim in the response
//	16      8     cas
package wire

import (
	"encoding/binary"
	"errors"
)

const HeaderSize = 24

// Magic byte values.
const (
	MagicRequest  byte = 0x80
	MagicResponse byte = 0x81
)

// Opcodes this server implements.
const (
	OpGet     byte = 0x00
	OpSet     byte = 0x01
	OpAdd     byte = 0x02
	OpReplace byte = 0x03
	OpDelete  byte = 0x04
)

// Reserved opcodes: accepted on the wire, always answered with
// StatusUnknownCommand. Named so the text parser (§ text.go) and any
// future implementation can refer to them by keyword.
const (
	OpIncrement  byte = 0x05
	OpDecrement  byte = 0x06
	OpQuit       byte = 0x07
	OpFlush      byte = 0x08
	OpGetQ       byte = 0x09
	OpNoOp       byte = 0x0A
	OpVersion    byte = 0x0B
	OpGetK       byte = 0x0C
	OpGetKQ      byte = 0x0D
	OpAppend     byte = 0x0E
	OpPrepend    byte = 0x0F
	OpStat       byte = 0x10
	OpSetQ       byte = 0x11
	OpAddQ       byte = 0x12
	OpReplaceQ   byte = 0x13
	OpDeleteQ    byte = 0x14
	OpIncrementQ byte = 0x15
	OpDecrementQ byte = 0x16
	OpQuitQ      byte = 0x17
	OpFlushQ     byte = 0x18
	OpAppendQ    byte = 0x19
	OpPrependQ   byte = 0x1A
)

// Status codes.
const (
	StatusOK               uint16 = 0x0000
	StatusKeyNotFound      uint16 = 0x0001
	StatusInvalidArguments uint16 = 0x0004
	StatusKeyExists        uint16 = 0x0005
	StatusUnknownCommand   uint16 = 0x0081
	StatusInternalError    uint16 = 0x0084
)

// ErrMalformedPacket is returned by Decode when the header's declared
// lengths are inconsistent with each other or with the available bytes.
var ErrMalformedPacket = errors.New("wire: malformed packet")

// Header is the fixed 24-byte packet header.
type Header struct {
	Magic           byte
	Opcode          byte
	KeyLength       uint16
	ExtrasLength    uint8
	DataType        byte
	Status          uint16
	TotalBodyLength uint32
	Opaque          uint32
	CAS             uint64
}

// Packet is one decoded (or about-to-be-encoded) memcached binary message.
type Packet struct {
	Header Header
	Extras []byte
	Key    []byte
	Value  []byte
}

// NewRequest returns an empty request packet with the given opcode.
func NewRequest(opcode byte) *Packet {
	return &Packet{Header: Header{Magic: MagicRequest, Opcode: opcode}}
}

// NewResponse returns an empty response packet echoing opcode and opaque
// from req, as every response in this protocol must.
func NewResponse(req *Packet) *Packet {
	return &Packet{Header: Header{
		Magic:  MagicResponse,
		Opcode: req.Header.Opcode,
		Opaque: req.Header.Opaque,
	}}
}

// Encode serializes p to its wire form: the 24-byte header followed by
// extras, key, and value, all big-endian.
func Encode(p *Packet) []byte {
	total := len(p.Extras) + len(p.Key) + len(p.Value)
	out := make([]byte, HeaderSize+total)

	out[0] = p.Header.Magic
	out[1] = p.Header.Opcode
	binary.BigEndian.PutUint16(out[2:4], uint16(len(p.Key)))
	out[4] = uint8(len(p.Extras))
	out[5] = p.Header.DataType
	binary.BigEndian.PutUint16(out[6:8], p.Header.Status)
	binary.BigEndian.PutUint32(out[8:12], uint32(total))
	binary.BigEndian.PutUint32(out[12:16], p.Header.Opaque)
	binary.BigEndian.PutUint64(out[16:24], p.Header.CAS)

	off := HeaderSize
	off += copy(out[off:], p.Extras)
	off += copy(out[off:], p.Key)
	copy(out[off:], p.Value)

	return out
}

// Decode parses one packet from buf. buf may contain trailing bytes
// beyond the packet (the server reads a fixed header first, then exactly
// total_body_length more bytes, so in practice buf is exactly sized —
// Decode still validates independently so it is safe to call on a
// caller-supplied buffer of any size).
func Decode(buf []byte) (*Packet, error) {
	if len(buf) < HeaderSize {
		return nil, ErrMalformedPacket
	}

	h := Header{
		Magic:           buf[0],
		Opcode:          buf[1],
		KeyLength:       binary.BigEndian.Uint16(buf[2:4]),
		ExtrasLength:    buf[4],
		DataType:        buf[5],
		Status:          binary.BigEndian.Uint16(buf[6:8]),
		TotalBodyLength: binary.BigEndian.Uint32(buf[8:12]),
		Opaque:          binary.BigEndian.Uint32(buf[12:16]),
		CAS:             binary.BigEndian.Uint64(buf[16:24]),
	}

	keyLen := int(h.KeyLength)
	extrasLen := int(h.ExtrasLength)
	bodyLen := int(h.TotalBodyLength)

	if bodyLen < extrasLen+keyLen {
		return nil, ErrMalformedPacket
	}
	if len(buf) < HeaderSize+bodyLen {
		return nil, ErrMalformedPacket
	}

	valLen := bodyLen - extrasLen - keyLen

	off := HeaderSize
	extras := append([]byte(nil), buf[off:off+extrasLen]...)
	off += extrasLen
	key := append([]byte(nil), buf[off:off+keyLen]...)
	off += keyLen
	value := append([]byte(nil), buf[off:off+valLen]...)

	return &Packet{Header: h, Extras: extras, Key: key, Value: value}, nil
}
