package core

// Key is an integer-packed grid position used as the key of sparse cell maps.
// The x coordinate occupies the high 32 bits and y the low 32 bits.
type Key uint64

// PackKey packs a position into a Key.
func PackKey(x, y int) Key {
	return Key(uint64(uint32(int32(x)))<<32 | uint64(uint32(int32(y))))
}

// XY unpacks the position held by the key.
func (k Key) XY() (x, y int) {
	return int(int32(uint32(k >> 32))), int(int32(uint32(k)))
}

// X returns the column of the key.
func (k Key) X() int {
	x, _ := k.XY()
	return x
}

// Y returns the row of the key.
func (k Key) Y() int {
	_, y := k.XY()
	return y
}
