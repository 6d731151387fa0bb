// Package grid converts between linear cell indices and 2D coordinates.
package grid

// GetGridCoords returns the column and row of a linear index in a grid
// that is cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Index returns the linear index of (x, y) in a grid that is cols wide.
func Index(x, y, cols int) int {
	return y*cols + x
}

// Wrap folds (x, y) into a cols x rows grid, treating the grid as a torus.
func Wrap(x, y, cols, rows int) (int, int) {
	x %= cols
	if x < 0 {
		x += cols
	}
	y %= rows
	if y < 0 {
		y += rows
	}
	return x, y
}
