package output

import "gonum.org/v1/gonum/mat"

// denseTraffic has four hops from the electrode (site 2) to acceptor 0 and
// four from acceptor 0 to acceptor 1.
func denseTraffic() *mat.Dense {
	t := mat.NewDense(3, 3, nil)
	t.Set(2, 0, 4)
	t.Set(0, 1, 4)
	return t
}
