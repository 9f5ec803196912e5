package training

import "math/rand"

// StratifiedSplit returns train and test row indices preserving the class ratio.
// The same seed always yields the same split.
func StratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int) {
	byClass := map[int][]int{}
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	rng := rand.New(rand.NewSource(seed))
	for _, class := range []int{0, 1} {
		rows := byClass[class]
		rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		nTest := int(float64(len(rows))*testFraction + 0.5)
		if nTest >= len(rows) && len(rows) > 1 {
			nTest = len(rows) - 1
		}
		test = append(test, rows[:nTest]...)
		train = append(train, rows[nTest:]...)
	}
	return train, test
}
