package miles

// SideBit is the frame position that encodes BLUFOR/OPFOR affiliation.
// Adjust to match the receiver mapping in use.
const SideBit = 5

// DefaultCodes mirrors the code table of the bench controller. The bit
// patterns are demo values, not real MILES timing data.
var DefaultCodes = []Code{
	{ID: 0, Name: "Universal Kill (Basic)", Pattern: []byte{1, 1, 0, 0, 0, 1, 0, 1, 1, 0, 1}, TeamBit: SideBit},
	{ID: 1, Name: "Player ID 001", Pattern: []byte{1, 0, 0, 1, 0, 0, 1, 1, 0, 1, 0}, TeamBit: SideBit},
	{ID: 2, Name: "Player ID 002", Pattern: []byte{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 0}, TeamBit: SideBit},
	{ID: 3, Name: "Pause/Reset", Pattern: []byte{1, 1, 0, 0, 0, 1, 0, 1, 0, 1, 1}, TeamBit: SideBit},
	{ID: 4, Name: "End Exercise", Pattern: []byte{1, 1, 0, 0, 0, 1, 1, 1, 1, 1, 0}, TeamBit: SideBit},
}

// DefaultRegistry builds a registry from DefaultCodes.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(DefaultCodes)
}
