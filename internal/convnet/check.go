package convnet

import (
	"github.com/servonet/servonet/internal/gradcheck"
	"github.com/servonet/servonet/internal/tensor"
)

// CheckGradients compares the analytic gradients of Loss with central
// differences of the loss for every parameter.
//
// It returns the normwise relative error per parameter name. The network's
// parameters are perturbed during the check and restored afterwards. Use
// float64 networks; float32 rounding swamps the finite differences.
func CheckGradients[T tensor.Float](n *Network[T], x *tensor.Tensor[T], target Target[T], step float64) (map[string]float64, error) {
	_, grads, err := n.Loss(x, target)
	if err != nil {
		return nil, err
	}

	loss := func() float64 {
		scores, _ := n.forward(x)
		l, _ := n.dataLoss(scores, target)
		return l + n.Penalty()
	}

	errs := make(map[string]float64, n.params.Len())
	for _, name := range n.params.names {
		numeric := gradcheck.Tensor(loss, n.params.Get(name), step)
		errs[name] = gradcheck.NormRelError(numeric, gradcheck.Float64s(grads.Get(name)))
	}
	return errs, nil
}
