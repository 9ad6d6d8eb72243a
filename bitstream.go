package tcd

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// bitStream reads unsigned integers of arbitrary bit width from a
// byte-seekable source. Bits are consumed MSB-first within each byte
// (big-endian bit order). The accumulator never holds more than 39 bits:
// at most 7 leftover bits plus one 32-bit refill.
type bitStream struct {
	src io.ReadSeeker
	br  *bufio.Reader

	acc   uint64 // pending bits, right-aligned
	nbits uint   // number of pending bits in acc

	bytePos int64 // bytes consumed from src into the accumulator
}

func newBitStream(src io.ReadSeeker) *bitStream {
	return &bitStream{src: src, br: bufio.NewReader(src)}
}

// readUint reads n bits (1 ≤ n ≤ 32) and returns them as a uint32.
// Returns ErrInvalidArgument for n outside 1..32 and ErrTruncated if the
// source ends before n bits are available.
func (s *bitStream) readUint(n int) (uint32, error) {
	if n < 1 || n > 32 {
		return 0, errors.Wrapf(ErrInvalidArgument, "bit width %d outside 1..32", n)
	}
	for s.nbits < uint(n) {
		b, err := s.br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, errors.Wrapf(ErrTruncated, "need %d bits at byte %d", n, s.bytePos)
			}
			return 0, errors.Wrap(err, "tcd: read")
		}
		s.acc = s.acc<<8 | uint64(b)
		s.nbits += 8
		s.bytePos++
	}
	s.nbits -= uint(n)
	v := uint32(s.acc >> s.nbits)
	s.acc &= (1 << s.nbits) - 1
	return v, nil
}

// readInt reads n bits and sign-extends them as two's complement.
func (s *bitStream) readInt(n int) (int32, error) {
	v, err := s.readUint(n)
	if err != nil {
		return 0, err
	}
	if n < 32 && v >= 1<<(n-1) {
		return int32(int64(v) - 1<<n), nil
	}
	return int32(v), nil
}

// readScaled reads an n-bit signed value and divides by scale.
func (s *bitStream) readScaled(n int, scale float64) (float64, error) {
	v, err := s.readInt(n)
	if err != nil {
		return 0, err
	}
	return float64(v) / scale, nil
}

// readUintScaled reads an n-bit unsigned value and divides by scale.
func (s *bitStream) readUintScaled(n int, scale float64) (float64, error) {
	v, err := s.readUint(n)
	if err != nil {
		return 0, err
	}
	return float64(v) / scale, nil
}

// readOffsetScaled reads an n-bit unsigned value and returns (raw+offset)/scale.
func (s *bitStream) readOffsetScaled(n int, offset, scale float64) (float64, error) {
	v, err := s.readUint(n)
	if err != nil {
		return 0, err
	}
	return (float64(v) + offset) / scale, nil
}

// readCString reads 8-bit bytes in the current bit phase (not byte-aligned)
// up to a zero byte and decodes them as ISO-8859-1. Bytes 0x80..0xFF are
// data, not errors.
func (s *bitStream) readCString() (string, error) {
	var raw []byte
	for {
		b, err := s.readUint(8)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		raw = append(raw, byte(b))
	}
	return decodeLatin1(raw)
}

// align discards any pending sub-byte bits so the next read starts on a
// byte boundary of the underlying source.
func (s *bitStream) align() {
	s.acc = 0
	s.nbits = 0
}

// seek repositions the underlying source to an absolute byte offset and
// clears all pending bits.
func (s *bitStream) seek(off int64) error {
	if _, err := s.src.Seek(off, io.SeekStart); err != nil {
		return errors.Wrap(err, "tcd: seek")
	}
	s.br.Reset(s.src)
	s.acc = 0
	s.nbits = 0
	s.bytePos = off
	return nil
}

// pos returns the underlying byte position. The sub-byte phase is not
// exposed; pending bits count as already consumed.
func (s *bitStream) pos() int64 { return s.bytePos }

// decodeLatin1 transcodes ISO-8859-1 bytes to a UTF-8 string.
func decodeLatin1(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO-8859-1 maps every byte; this is unreachable in practice.
		return "", errors.Wrap(err, "tcd: latin-1 decode")
	}
	return string(out), nil
}
