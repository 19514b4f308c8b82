package layers

import (
	"fmt"
	"math"

	"github.com/servonet/servonet/internal/tensor"
)

// SoftmaxLoss computes the mean softmax cross-entropy of class scores.
//
// scores has shape [N, C]; labels holds N class indices in [0, C).
// Returns the scalar loss and dscores = (softmax(scores) - onehot(labels)) / N.
//
// Each row is shifted by its maximum before exponentiating, so large scores do
// not overflow. Accumulation happens in float64 regardless of T.
func SoftmaxLoss[T tensor.Float](scores *tensor.Tensor[T], labels []int) (float64, *tensor.Tensor[T]) {
	ss := scores.Shape()
	if len(ss) != 2 {
		panic(fmt.Sprintf("softmax loss: scores must be 2D [N,C], got %v", ss))
	}
	n, c := ss[0], ss[1]
	if len(labels) != n {
		panic(fmt.Sprintf("softmax loss: %d labels for %d samples", len(labels), n))
	}

	sd := scores.Data()
	dscores := tensor.ZerosLike(scores)
	dd := dscores.Data()
	probs := make([]float64, c)

	var loss float64
	for i := 0; i < n; i++ {
		y := labels[i]
		if y < 0 || y >= c {
			panic(fmt.Sprintf("softmax loss: label %d out of range [0, %d)", y, c))
		}
		row := sd[i*c : (i+1)*c]

		maxVal := math.Inf(-1)
		for _, v := range row {
			maxVal = math.Max(maxVal, float64(v))
		}
		var sum float64
		for j, v := range row {
			probs[j] = math.Exp(float64(v) - maxVal)
			sum += probs[j]
		}
		logSum := math.Log(sum)
		loss -= float64(row[y]) - maxVal - logSum

		for j := range probs {
			p := probs[j] / sum
			if j == y {
				p--
			}
			dd[i*c+j] = T(p / float64(n))
		}
	}
	return loss / float64(n), dscores
}

// L2Loss computes the mean squared-error regression loss
//
//	loss = 0.5/N * Σ (scores - target)²
//
// over scores and target of identical shape [N, M].
// Returns the scalar loss and dscores = (scores - target) / N.
func L2Loss[T tensor.Float](scores, target *tensor.Tensor[T]) (float64, *tensor.Tensor[T]) {
	if !scores.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("l2 loss: scores %v and target %v differ in shape", scores.Shape(), target.Shape()))
	}
	n := scores.Dim(0)

	dscores := tensor.ZerosLike(scores)
	dd, td := dscores.Data(), target.Data()
	var loss float64
	for i, s := range scores.Data() {
		diff := float64(s) - float64(td[i])
		loss += diff * diff
		dd[i] = T(diff / float64(n))
	}
	return 0.5 * loss / float64(n), dscores
}
