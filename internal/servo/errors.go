package servo

import "errors"

// ErrDatasetShape is returned when the configured split or image layout is
// impossible, or a decoded image cannot be used.
var ErrDatasetShape = errors.New("invalid servo dataset shape")
