package common

import "encoding/binary"

// CalculateChecksum computes the Internet checksum (RFC 1071) over data:
// the one's complement of the one's complement sum of all 16-bit words,
// with an odd trailing byte treated as a zero-padded word. Carries are
// folded back into the low 16 bits until none remain.
//
// The same algorithm covers the IPv4 header, ICMP, UDP and TCP checksums.
func CalculateChecksum(data []byte) uint16 {
	var sum uint32

	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}

	for sum > 0xFFFF {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}

	return ^uint16(sum)
}

// VerifyChecksum reports whether data that includes its own checksum field
// sums to zero. In one's complement arithmetic 0 and 0xFFFF are equivalent.
func VerifyChecksum(data []byte) bool {
	sum := CalculateChecksum(data)
	return sum == 0 || sum == 0xFFFF
}

// PseudoHeader is the 12-byte prefix summed into TCP and UDP checksums
// (RFC 793 / RFC 768): source address, destination address, a zero byte,
// the protocol number, and the transport-layer length.
type PseudoHeader struct {
	Source      IPv4Address
	Destination IPv4Address
	Protocol    Protocol
	Length      uint16
}

// Bytes serializes the pseudo-header for checksum calculation.
func (ph PseudoHeader) Bytes() []byte {
	b := make([]byte, 12)
	copy(b[0:4], ph.Source[:])
	copy(b[4:8], ph.Destination[:])
	b[8] = 0
	b[9] = uint8(ph.Protocol)
	binary.BigEndian.PutUint16(b[10:12], ph.Length)
	return b
}

// ChecksumWithPseudoHeader computes the checksum over the pseudo-header
// followed by the transport segment. Used for TCP (and optionally UDP).
func ChecksumWithPseudoHeader(ph PseudoHeader, segment []byte) uint16 {
	combined := make([]byte, 0, 12+len(segment))
	combined = append(combined, ph.Bytes()...)
	combined = append(combined, segment...)
	return CalculateChecksum(combined)
}
