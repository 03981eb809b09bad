package core

import (
	"math"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
)

// Quorum computes peer i's Maekawa quorum for a system of n peers:
// arrange 0..n-1 into a row-major grid of side R = ceil(sqrt(n)) and
// take the union of i's row and i's column, including i itself. Any
// two quorums computed this way intersect, which is the property the
// arbiter/requester protocol relies on for safety.
//
// Mirrors the original __form_colleagues construction in
// original_source/node.py, generalized to expose the full quorum
// (including self) rather than "colleagues" (self excluded), since
// the requester needs |Q(i)| to test unanimity.
func Quorum(n int, i int) []types.PeerID {
	if n <= 1 {
		return []types.PeerID{types.PeerID(i)}
	}

	side := int(math.Ceil(math.Sqrt(float64(n))))
	row := i / side
	col := i % side

	seen := make(map[int]bool, 2*side)
	var members []types.PeerID

	add := func(id int) {
		if id < 0 || id >= n || seen[id] {
			return
		}
		seen[id] = true
		members = append(members, types.PeerID(id))
	}

	rowStart := row * side
	for j := 0; j < side; j++ {
		add(rowStart + j)
	}
	for r := 0; r*side+col < n; r++ {
		add(r*side + col)
	}

	return members
}
