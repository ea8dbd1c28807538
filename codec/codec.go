// Package codec centralizes document payload encoding.
//
// Payload bytes written to the document store are only decodable by the codec
// that produced them, so codec selection is a breaking-change boundary for an
// existing database folder.
package codec

// Codec encodes/decodes document payloads.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}
