package importer

// CombineIntInt packs two 32-bit counts into one word, head in the high half.
func CombineIntInt(head, tail int32) uint64 {
	return uint64(uint32(head))<<32 | uint64(uint32(tail))
}

func Head(combined uint64) int32 { return int32(combined >> 32) }

func Tail(combined uint64) int32 { return int32(combined) }
