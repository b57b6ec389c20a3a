package model

// Tick bounds of the pool's price domain.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// TickSpacings maps each supported fee tier (hundredths of a bip) to its tick
// spacing.
var TickSpacings = map[uint32]int32{
	100:   1,
	500:   10,
	2500:  50,
	3000:  60,
	10000: 200,
}
