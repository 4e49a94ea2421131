package numeric

import (
	"fmt"
	"strconv"

	"github.com/delaneyj/phylflow/dataflow"
	"gonum.org/v1/gonum/mat"
)

// Format recomputes n if needed and renders its value.
func Format(n dataflow.Node) string {
	switch v := n.(type) {
	case Scalar:
		return strconv.FormatFloat(v.GetValue(), 'g', -1, 64)
	case Matrix:
		return fmt.Sprintf("%v", mat.Formatted(v.GetValue(), mat.Squeeze()))
	}
	n.RecomputeRecursively()
	return "<" + n.Description() + ">"
}
