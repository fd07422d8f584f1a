package raffle

import "github.com/holiman/uint256"

// SelectWinner maps a random value onto [0, count). The modulo bias is
// negligible for a 256-bit value and a realistic participant count.
func SelectWinner(randomValue *uint256.Int, count int) (int, error) {
	if count <= 0 {
		return 0, ErrNoParticipants
	}
	if randomValue == nil {
		randomValue = new(uint256.Int)
	}
	idx := new(uint256.Int).Mod(randomValue, uint256.NewInt(uint64(count)))
	return int(idx.Uint64()), nil
}
