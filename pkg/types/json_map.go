package types

// JSONMap is a loosely typed jsonb column helper.
type JSONMap map[string]any
