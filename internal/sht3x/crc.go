package sht3x

const (
	crcPolynomial = 0x31
	crcInit       = 0xFF
)

// CRC8 computes the Sensirion checksum (poly 0x31, init 0xFF, no reflection,
// no final XOR) over data.
func CRC8(data []byte) byte {
	crc := byte(crcInit)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
