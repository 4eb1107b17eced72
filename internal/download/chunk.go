package download

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// ChunkSize returns the copy buffer size for a transfer of totalSize bytes.
// Small files use small buffers so progress accounting stays responsive;
// large files use buffers up to 16 MiB to keep syscall overhead down. An
// unknown total (<= 0) gets the 128 KiB default.
func ChunkSize(totalSize int64) int {
	switch {
	case totalSize <= 0:
		return 128 * kib
	case totalSize < 1*mib:
		return 32 * kib
	case totalSize < 10*mib:
		return 128 * kib
	case totalSize < 50*mib:
		return 512 * kib
	case totalSize < 100*mib:
		return 1 * mib
	case totalSize < 250*mib:
		return 2 * mib
	case totalSize < 500*mib:
		return 4 * mib
	case totalSize < 1*gib:
		return 8 * mib
	default:
		return 16 * mib
	}
}
