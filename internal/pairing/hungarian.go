package pairing

import "math"

const infCost = math.MaxInt32

// clampInt32 clamps a cost value into the signed 32-bit range before it
// enters the assignment solver, per SPEC_FULL.md §4.4 step 5.
func clampInt32(v int) int {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return v
}

// Hungarian solves minimum-cost perfect matching of every row to a
// distinct column on a rectangular cost matrix with rows <= cols (a
// standard Kuhn-Munkres / Jonker-Volgenant shortest-augmenting-path
// formulation, O(rows^2 * cols)). assignment[i] is the column matched to
// row i. No general-purpose assignment-problem library appears anywhere
// in the example corpus, so this is a direct, from-scratch implementation
// of the textbook algorithm — see DESIGN.md.
func Hungarian(cost [][]int) (assignment []int) {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if n > m {
		panic("pairing: Hungarian requires rows <= cols")
	}

	u := make([]int, n+1)
	v := make([]int, m+1)
	p := make([]int, m+1) // p[j]: 1-based row currently assigned to column j
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]int, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = infCost
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := infCost
			j1 := -1

			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := clampInt32(cost[i0-1][j-1]) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assignment = make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			assignment[p[j]-1] = j - 1
		}
	}

	return assignment
}
