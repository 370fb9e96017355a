package outbound

// encryption primitives used by the file-backed reference store
type CryptoService interface {
	Encrypt(data []byte, key [32]byte) (encrypted []byte, nonce []byte, err error)
	Decrypt(encrypted []byte, nonce []byte, key [32]byte) ([]byte, error)
	DeriveKey(secret string) [32]byte
}

// provides a stable identifier of the host machine
type MachineIDService interface {
	GetMachineID() (string, error)
}
