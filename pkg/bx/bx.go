// Package bx is a small byte-encoding helper, little-endian by default.
package bx

import "encoding/binary"

var LE = binary.LittleEndian

func U16(b []byte) uint16       { return LE.Uint16(b) }
func U32(b []byte) uint32       { return LE.Uint32(b) }
func PutU16(b []byte, v uint16) { LE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
