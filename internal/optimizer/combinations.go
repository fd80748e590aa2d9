package optimizer

// Combinations iterates over all k-element index subsets of {0..n-1} in
// lexicographic order. The slice returned by Indices is reused between
// calls to Next and must be copied by callers that keep it.
type Combinations struct {
	n, k    int
	indices []int
	started bool
	done    bool
}

func NewCombinations(n, k int) *Combinations {
	c := &Combinations{n: n, k: k}
	c.Reset()
	return c
}

// Reset rewinds the iterator to the first subset.
func (c *Combinations) Reset() {
	c.started = false
	c.done = c.k < 0 || c.k > c.n
	c.indices = make([]int, max(c.k, 0))
	for i := range c.indices {
		c.indices[i] = i
	}
}

// Next advances to the next subset and reports whether one exists.
func (c *Combinations) Next() bool {
	if c.done {
		return false
	}
	if !c.started {
		c.started = true
		return true
	}
	i := c.k - 1
	for i >= 0 && c.indices[i] == c.n-c.k+i {
		i--
	}
	if i < 0 {
		c.done = true
		return false
	}
	c.indices[i]++
	for j := i + 1; j < c.k; j++ {
		c.indices[j] = c.indices[j-1] + 1
	}
	return true
}

func (c *Combinations) Indices() []int { return c.indices }

// Binomial returns C(n, k), saturating at limit to avoid overflow.
func Binomial(n, k int, limit uint64) uint64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	var r uint64 = 1
	for i := 1; i <= k; i++ {
		r = r * uint64(n-k+i) / uint64(i)
		if r >= limit {
			return limit
		}
	}
	return r
}
