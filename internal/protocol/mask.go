package protocol

// ApplyMask XORs p in place with the 4-byte masking key. The operation
// is its own inverse: applying the same key twice restores the input.
// Clients mask every frame they send; the server applies the key once
// on receipt and never masks outbound frames.
func ApplyMask(p []byte, key [4]byte) {
	for i := range p {
		p[i] ^= key[i%4]
	}
}
