package protocol

// BCC computes the block check character over a frame body: XOR of every
// byte from the one after STX through ETX inclusive. Results below 0x20 get
// 0x20 added so the checksum never collides with a control byte.
func BCC(body []byte) byte {
	var c byte
	for _, b := range body {
		c ^= b
	}
	if c < 0x20 {
		c += 0x20
	}
	return c
}

// CheckBCC recomputes the checksum over body and compares it to the byte
// received on the wire.
func CheckBCC(body []byte, got byte) bool {
	return BCC(body) == got
}
