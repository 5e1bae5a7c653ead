package utils

import "fmt"

// Index is a list of global indices, such as the DOFs of one cell
type Index []int

// CheckBounds returns an error if any entry lies outside [0, max)
func (I Index) CheckBounds(max int) (err error) {
	for i, val := range I {
		switch {
		case val < 0:
			err = fmt.Errorf("dimension bounds error, index < 0: I[%d] = %v", i, val)
			return
		case val > max-1:
			err = fmt.Errorf("dimension bounds error, index > max: I[%d] = %v, max = %v", i, val, max-1)
			return
		}
	}
	return
}
