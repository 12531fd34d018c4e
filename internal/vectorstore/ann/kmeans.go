package ann

// kmeans clusters vectors into at most k centroids under squared L2
// distance. Initialization picks evenly spaced input vectors, which
// keeps builds deterministic. Returns the centroids and each vector's
// assignment.
func kmeans(vectors [][]float32, k, maxIter int) ([][]float32, []int) {
	if k > len(vectors) {
		k = len(vectors)
	}
	if k < 1 {
		k = 1
	}
	dim := len(vectors[0])

	centroids := make([][]float32, k)
	for i := range centroids {
		src := vectors[i*len(vectors)/k]
		centroids[i] = make([]float32, dim)
		copy(centroids[i], src)
	}

	assign := make([]int, len(vectors))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			c := nearestCentroid(v, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for j, x := range v {
				sums[c][j] += float64(x)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its centroid
			}
			for j := range centroids[c] {
				centroids[c][j] = float32(sums[c][j] / float64(counts[c]))
			}
		}
	}

	return centroids, assign
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := squaredL2(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := squaredL2(v, centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
