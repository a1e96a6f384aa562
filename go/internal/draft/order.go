package draft

// SeatForPickIndex maps a 0-based overall pick index to the 1-based seat on the clock.
// Odd rounds run 1..seatCount, even rounds run seatCount..1.
func SeatForPickIndex(pickIndex, seatCount int) int {
	pos := PickInRound(pickIndex, seatCount)
	if RoundForPickIndex(pickIndex, seatCount)%2 == 1 {
		return pos + 1
	}
	return seatCount - pos
}

// RoundForPickIndex returns the 1-based round a pick index falls in.
func RoundForPickIndex(pickIndex, seatCount int) int {
	return pickIndex/seatCount + 1
}

// PickInRound returns the 0-based position of a pick index within its round.
func PickInRound(pickIndex, seatCount int) int {
	return pickIndex % seatCount
}
