package servo

import "github.com/servonet/servonet/internal/tensor"

// Keys of the map returned by Dataset.Map.
const (
	KeyXTrain = "X_train"
	KeyYTrain = "y_train"
	KeyXVal   = "X_val"
	KeyYVal   = "y_val"
	KeyXTest  = "X_test"
	KeyYTest  = "y_test"
)

// Dataset is the mean-centred servoing set.
//
// Images are [N, 3, Size, Size] in 0..255 scale minus the training mean;
// targets are [N, 2]. The test split is the validation split: XTest and XVal
// are the same tensor, as are YTest and YVal.
type Dataset struct {
	XTrain, YTrain *tensor.Tensor[float64]
	XVal, YVal     *tensor.Tensor[float64]
	XTest, YTest   *tensor.Tensor[float64]

	// Mean is the per-pixel training mean [3, Size, Size] that was subtracted.
	Mean *tensor.Tensor[float64]
}

// Map returns the splits keyed X_train, y_train, X_val, y_val, X_test, y_test.
func (d *Dataset) Map() map[string]*tensor.Tensor[float64] {
	return map[string]*tensor.Tensor[float64]{
		KeyXTrain: d.XTrain,
		KeyYTrain: d.YTrain,
		KeyXVal:   d.XVal,
		KeyYVal:   d.YVal,
		KeyXTest:  d.XTest,
		KeyYTest:  d.YTest,
	}
}

// targets cycle through four servo positions.
var targets = [4][2]float64{{5, 2}, {3, 2}, {2, 3}, {0, 0}}

// Target returns the regression target of sample n.
func Target(n int) [2]float64 {
	return targets[n%len(targets)]
}
