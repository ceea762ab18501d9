package models

// JSONMap holds opaque JSON payloads such as payment method details.
type JSONMap map[string]any
