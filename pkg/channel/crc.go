package channel

// CCSDS frame error control: CRC-16-CCITT, polynomial 0x1021, preset 0xFFFF,
// no reflection, no final inversion.

var crcTable [256]uint16

func init() {
	const poly uint16 = 0x1021

	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

// CalculateCRC calculates the CRC-16 of data
func CalculateCRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}

// AppendCRC appends the big-endian CRC of data
func AppendCRC(data []byte) []byte {
	crc := CalculateCRC(data)
	return append(data, byte(crc>>8), byte(crc))
}

// VerifyCRC checks the 2-byte CRC at the end of data
func VerifyCRC(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	received := uint16(data[len(data)-2])<<8 | uint16(data[len(data)-1])
	return CalculateCRC(data[:len(data)-2]) == received
}
