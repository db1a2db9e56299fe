package memory

// TileConfig describes a rectangular tiling of a row-major buffer.
// Tiled layout keeps a GPU workgroup's cells contiguous, which turns
// the scattered reads of a rewrite batch into coalesced ones.
type TileConfig struct {
	Width  uint64
	Height uint64
}

// Tiling presets matching common workgroup shapes.
var (
	Tile8x8   = TileConfig{Width: 8, Height: 8}
	Tile16x16 = TileConfig{Width: 16, Height: 16}
	Tile32x32 = TileConfig{Width: 32, Height: 32}
)

// Cells returns the number of cells per tile.
func (c TileConfig) Cells() uint64 { return c.Width * c.Height }

// LinearToTiled maps a row-major index into the tiled layout of a
// buffer rowWidth cells wide. rowWidth must be a multiple of the tile
// width; the mapping is a bijection under that condition.
func (c TileConfig) LinearToTiled(i, rowWidth uint64) uint64 {
	row, col := i/rowWidth, i%rowWidth
	tilesPerRow := rowWidth / c.Width
	tile := (row/c.Height)*tilesPerRow + col/c.Width
	inner := (row%c.Height)*c.Width + col%c.Width
	return tile*c.Cells() + inner
}

// TiledToLinear inverts LinearToTiled for the same rowWidth.
func (c TileConfig) TiledToLinear(i, rowWidth uint64) uint64 {
	tile, inner := i/c.Cells(), i%c.Cells()
	tilesPerRow := rowWidth / c.Width
	row := (tile/tilesPerRow)*c.Height + inner/c.Width
	col := (tile%tilesPerRow)*c.Width + inner%c.Width
	return row*rowWidth + col
}
