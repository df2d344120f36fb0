package classifier

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Activation names accepted by SimpleConfig.
const (
	ActivationTanh    = "tanh"
	ActivationReLU    = "relu"
	ActivationSigmoid = "sigmoid"
	ActivationSoftmax = "softmax"
	ActivationLinear  = "linear"
)

const hiddenUnits = 24

// param is a weight tensor with its gradient and Adam moments.
type param struct {
	w, g, m, v []float64
}

func newParam(n int) *param {
	return &param{
		w: make([]float64, n),
		g: make([]float64, n),
		m: make([]float64, n),
		v: make([]float64, n),
	}
}

func (p *param) uniform(rng *rand.Rand, limit float64) {
	for i := range p.w {
		p.w[i] = (rng.Float64()*2 - 1) * limit
	}
}

// layer is a dense layer. Row j of w holds the input weights of unit j.
type layer struct {
	in, out    int
	w, b       *param
	activation string
}

func newLayer(rng *rand.Rand, in, out int, activation string) *layer {
	l := &layer{in: in, out: out, w: newParam(in * out), b: newParam(out), activation: activation}
	l.w.uniform(rng, math.Sqrt(6/float64(in+out)))
	return l
}

func (l *layer) row(j int) []float64 { return l.w.w[j*l.in : (j+1)*l.in] }

func (l *layer) forward(x []float64) (z, a []float64) {
	z = make([]float64, l.out)
	for j := range z {
		z[j] = floats.Dot(l.row(j), x) + l.b.w[j]
	}
	return z, activate(l.activation, z)
}

// backward accumulates the gradients for dz and returns the gradient with
// respect to the input x.
func (l *layer) backward(x, dz []float64) []float64 {
	dx := make([]float64, l.in)
	for j, d := range dz {
		floats.AddScaled(l.w.g[j*l.in:(j+1)*l.in], d, x)
		l.b.g[j] += d
		floats.AddScaled(dx, d, l.row(j))
	}
	return dx
}

func activate(name string, z []float64) []float64 {
	a := make([]float64, len(z))
	switch name {
	case ActivationTanh:
		for i, v := range z {
			a[i] = math.Tanh(v)
		}
	case ActivationReLU:
		for i, v := range z {
			a[i] = math.Max(0, v)
		}
	case ActivationSigmoid:
		for i, v := range z {
			a[i] = 1 / (1 + math.Exp(-v))
		}
	case ActivationSoftmax:
		maxZ := floats.Max(z)
		for i, v := range z {
			a[i] = math.Exp(v - maxZ)
		}
		floats.Scale(1/floats.Sum(a), a)
	default:
		copy(a, z)
	}
	return a
}

// derivative returns da/dz for element-wise activations given z and a.
func derivative(name string, z, a []float64) []float64 {
	d := make([]float64, len(z))
	for i := range d {
		switch name {
		case ActivationTanh:
			d[i] = 1 - a[i]*a[i]
		case ActivationReLU:
			if z[i] > 0 {
				d[i] = 1
			}
		case ActivationSigmoid:
			d[i] = a[i] * (1 - a[i])
		default:
			d[i] = 1
		}
	}
	return d
}

// network is embedding → global average pooling → dense → dense → output.
type network struct {
	dim, seqLen int
	emb         *param
	layers      []*layer
}

func newNetwork(rng *rand.Rand, vocab, dim, seqLen, outputs int, hidden, output string) *network {
	n := &network{dim: dim, seqLen: seqLen, emb: newParam(vocab * dim)}
	n.emb.uniform(rng, 0.05)
	n.layers = []*layer{
		newLayer(rng, dim, hiddenUnits, hidden),
		newLayer(rng, hiddenUnits, hiddenUnits, hidden),
		newLayer(rng, hiddenUnits, outputs, output),
	}
	return n
}

func (n *network) params() []*param {
	out := []*param{n.emb}
	for _, l := range n.layers {
		out = append(out, l.w, l.b)
	}
	return out
}

func (n *network) pool(seq []int) []float64 {
	x := make([]float64, n.dim)
	for _, idx := range seq {
		floats.Add(x, n.emb.w[idx*n.dim:(idx+1)*n.dim])
	}
	floats.Scale(1/float64(len(seq)), x)
	return x
}

type pass struct {
	inputs, z, a [][]float64
}

func (n *network) forward(seq []int) *pass {
	p := &pass{}
	x := n.pool(seq)
	for _, l := range n.layers {
		z, a := l.forward(x)
		p.inputs = append(p.inputs, x)
		p.z = append(p.z, z)
		p.a = append(p.a, a)
		x = a
	}
	return p
}

// predict returns the output activations for a padded sequence.
func (n *network) predict(seq []int) []float64 {
	p := n.forward(seq)
	return p.a[len(p.a)-1]
}

// backward accumulates the gradients of the cross-entropy loss of one sample.
func (n *network) backward(seq []int, p *pass, target []float64) {
	last := len(n.layers) - 1
	y := p.a[last]
	dz := make([]float64, len(y))
	floats.SubTo(dz, y, target)
	if out := n.layers[last].activation; out != ActivationSigmoid && out != ActivationSoftmax {
		floats.Mul(dz, derivative(out, p.z[last], y))
	}

	var dx []float64
	for i := last; i >= 0; i-- {
		dx = n.layers[i].backward(p.inputs[i], dz)
		if i > 0 {
			dz = dx
			floats.Mul(dz, derivative(n.layers[i-1].activation, p.z[i-1], p.a[i-1]))
		}
	}

	scale := 1 / float64(len(seq))
	for _, idx := range seq {
		floats.AddScaled(n.emb.g[idx*n.dim:(idx+1)*n.dim], scale, dx)
	}
}

// adam updates parameters from their accumulated gradients.
type adam struct {
	lr, beta1, beta2, eps float64
	step                  int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
}

func (o *adam) update(params []*param, batch int) {
	o.step++
	c1 := 1 - math.Pow(o.beta1, float64(o.step))
	c2 := 1 - math.Pow(o.beta2, float64(o.step))
	for _, p := range params {
		for i, g := range p.g {
			g /= float64(batch)
			p.m[i] = o.beta1*p.m[i] + (1-o.beta1)*g
			p.v[i] = o.beta2*p.v[i] + (1-o.beta2)*g*g
			p.w[i] -= o.lr * (p.m[i] / c1) / (math.Sqrt(p.v[i]/c2) + o.eps)
		}
		clear(p.g)
	}
}

// fit trains the network on padded sequences with one-hot labels.
func (n *network) fit(rng *rand.Rand, seqs [][]int, labels []int, outputs, epochs, batchSize int, lr float64) {
	opt := newAdam(lr)
	params := n.params()
	order := make([]int, len(seqs))
	for i := range order {
		order[i] = i
	}
	target := make([]float64, outputs)
	for epoch := 0; epoch < epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for start := 0; start < len(order); start += batchSize {
			end := min(start+batchSize, len(order))
			for _, idx := range order[start:end] {
				clear(target)
				target[labels[idx]] = 1
				n.backward(seqs[idx], n.forward(seqs[idx]), target)
			}
			opt.update(params, end-start)
		}
	}
}
