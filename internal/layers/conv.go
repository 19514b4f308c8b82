package layers

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/servonet/servonet/internal/parallel"
	"github.com/servonet/servonet/internal/tensor"
)

// ConvCache holds what ConvBackward needs from a ConvForward call.
type ConvCache[T tensor.Float] struct {
	x     *tensor.Tensor[T]
	w     *tensor.Tensor[T]
	param ConvParam
	hOut  int
	wOut  int
	cols  []T // per-sample im2col buffers, [N][C*KH*KW, HOut*WOut]
}

// ConvForward performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C, H, W]
// Kernel shape: [F, C, KH, KW]
// Bias shape:   [F]
// Output shape: [N, F, HOut, WOut] where HOut = (H + 2*pad - KH)/stride + 1.
//
// Each sample's receptive fields are unrolled into a [C*KH*KW, HOut*WOut]
// column matrix, so the convolution becomes one GEMM per sample:
//
//	out[n] = W[F, C*KH*KW] @ cols[n] + b
func ConvForward[T tensor.Float](x, w, b *tensor.Tensor[T], p ConvParam) (*tensor.Tensor[T], *ConvCache[T]) {
	xs, ws := x.Shape(), w.Shape()
	if len(xs) != 4 {
		panic(fmt.Sprintf("conv: input must be 4D [N,C,H,W], got %v", xs))
	}
	if len(ws) != 4 {
		panic(fmt.Sprintf("conv: kernel must be 4D [F,C,KH,KW], got %v", ws))
	}
	n, c, h, wd := xs[0], xs[1], xs[2], xs[3]
	f, kc, kh, kw := ws[0], ws[1], ws[2], ws[3]
	if c != kc {
		panic(fmt.Sprintf("conv: input channels %d != kernel channels %d", c, kc))
	}
	if b.NumElements() != f {
		panic(fmt.Sprintf("conv: bias has %d elements, want %d", b.NumElements(), f))
	}
	if p.Stride <= 0 {
		panic(fmt.Sprintf("conv: invalid stride %d", p.Stride))
	}

	hOut, wOut := p.OutputDims(h, wd, kh, kw)
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv: invalid output dimensions %dx%d (input %dx%d, kernel %dx%d, pad %d)",
			hOut, wOut, h, wd, kh, kw, p.Pad))
	}

	colRows, colCols := c*kh*kw, hOut*wOut
	cols := make([]T, n*colRows*colCols)
	out := tensor.New[T](tensor.Shape{n, f, hOut, wOut})

	xData, outData, bData := x.Data(), out.Data(), b.Data()
	kernel := tensor.Matrix[T]{Rows: f, Cols: colRows, Data: w.Data()}

	parallel.For(n, func(i int) {
		col := cols[i*colRows*colCols : (i+1)*colRows*colCols]
		im2col(col, xData[i*c*h*wd:(i+1)*c*h*wd], c, h, wd, kh, kw, hOut, wOut, p)

		dst := outData[i*f*colCols : (i+1)*f*colCols]
		for fi := 0; fi < f; fi++ {
			row := dst[fi*colCols : (fi+1)*colCols]
			for j := range row {
				row[j] = bData[fi]
			}
		}
		tensor.Gemm(blas.NoTrans, blas.NoTrans, 1,
			kernel,
			tensor.Matrix[T]{Rows: colRows, Cols: colCols, Data: col},
			1,
			tensor.Matrix[T]{Rows: f, Cols: colCols, Data: dst})
	}, Parallel)

	return out, &ConvCache[T]{x: x, w: w, param: p, hOut: hOut, wOut: wOut, cols: cols}
}

// ConvBackward computes gradients of a convolution.
//
// Returns dx [N, C, H, W], dw [F, C, KH, KW] and db [F].
//
//	db[f] = Σ_{n,h,w} dout[n,f,h,w]
//	dw   += dout[n] @ cols[n]^T     (sequential over n)
//	dx[n] = col2im(W^T @ dout[n])   (parallel over n)
func ConvBackward[T tensor.Float](dout *tensor.Tensor[T], cache *ConvCache[T]) (dx, dw, db *tensor.Tensor[T]) {
	xs, ws := cache.x.Shape(), cache.w.Shape()
	n, c, h, wd := xs[0], xs[1], xs[2], xs[3]
	f, kh, kw := ws[0], ws[2], ws[3]

	want := tensor.Shape{n, f, cache.hOut, cache.wOut}
	if !dout.Shape().Equal(want) {
		panic(fmt.Sprintf("conv backward: upstream gradient %v, want %v", dout.Shape(), want))
	}

	colRows, colCols := c*kh*kw, cache.hOut*cache.wOut
	doutData := dout.Data()

	db = tensor.New[T](tensor.Shape{f})
	dbData := db.Data()
	for i := 0; i < n; i++ {
		for fi := 0; fi < f; fi++ {
			var sum T
			for _, v := range doutData[(i*f+fi)*colCols : (i*f+fi+1)*colCols] {
				sum += v
			}
			dbData[fi] += sum
		}
	}

	dw = tensor.New[T](ws)
	dwMat := tensor.Matrix[T]{Rows: f, Cols: colRows, Data: dw.Data()}
	for i := 0; i < n; i++ {
		tensor.Gemm(blas.NoTrans, blas.Trans, 1,
			tensor.Matrix[T]{Rows: f, Cols: colCols, Data: doutData[i*f*colCols : (i+1)*f*colCols]},
			tensor.Matrix[T]{Rows: colRows, Cols: colCols, Data: cache.cols[i*colRows*colCols : (i+1)*colRows*colCols]},
			1,
			dwMat)
	}

	dx = tensor.New[T](xs)
	dxData := dx.Data()
	kernel := tensor.Matrix[T]{Rows: f, Cols: colRows, Data: cache.w.Data()}

	parallel.For(n, func(i int) {
		dcol := make([]T, colRows*colCols)
		tensor.Gemm(blas.Trans, blas.NoTrans, 1,
			kernel,
			tensor.Matrix[T]{Rows: f, Cols: colCols, Data: doutData[i*f*colCols : (i+1)*f*colCols]},
			0,
			tensor.Matrix[T]{Rows: colRows, Cols: colCols, Data: dcol})
		col2im(dxData[i*c*h*wd:(i+1)*c*h*wd], dcol, c, h, wd, kh, kw, cache.hOut, cache.wOut, cache.param)
	}, Parallel)

	return dx, dw, db
}

// im2col unrolls one sample [C, H, W] into col [C*KH*KW, HOut*WOut].
// Row (c, kh, kw) holds the input value under that kernel tap for every output
// position; taps falling in the padding read as zero.
func im2col[T tensor.Float](col, img []T, c, h, w, kh, kw, hOut, wOut int, p ConvParam) {
	colCols := hOut * wOut
	row := 0
	for ch := 0; ch < c; ch++ {
		plane := img[ch*h*w : (ch+1)*h*w]
		for ki := 0; ki < kh; ki++ {
			for kj := 0; kj < kw; kj++ {
				dst := col[row*colCols : (row+1)*colCols]
				idx := 0
				for oh := 0; oh < hOut; oh++ {
					y := oh*p.Stride - p.Pad + ki
					for ow := 0; ow < wOut; ow++ {
						x := ow*p.Stride - p.Pad + kj
						if y >= 0 && y < h && x >= 0 && x < w {
							dst[idx] = plane[y*w+x]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatters-adds col back into img.
// img must be zeroed by the caller.
func col2im[T tensor.Float](img, col []T, c, h, w, kh, kw, hOut, wOut int, p ConvParam) {
	colCols := hOut * wOut
	row := 0
	for ch := 0; ch < c; ch++ {
		plane := img[ch*h*w : (ch+1)*h*w]
		for ki := 0; ki < kh; ki++ {
			for kj := 0; kj < kw; kj++ {
				src := col[row*colCols : (row+1)*colCols]
				idx := 0
				for oh := 0; oh < hOut; oh++ {
					y := oh*p.Stride - p.Pad + ki
					for ow := 0; ow < wOut; ow++ {
						x := ow*p.Stride - p.Pad + kj
						if y >= 0 && y < h && x >= 0 && x < w {
							plane[y*w+x] += src[idx]
						}
						idx++
					}
				}
				row++
			}
		}
	}
}
