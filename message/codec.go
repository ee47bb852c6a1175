package message

import (
	"fmt"
)

// WireVersion is written into every encoded envelope. Decoders reject any other version.
const WireVersion = 1

// Codec turns messages into bytes for a transport and back. Each variant has an
// explicit encode and decode path; nothing is filled in by reflection.
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

const (
	JSONCodecName  = "json"
	ProtoCodecName = "proto"
)

// CodecByName returns the codec configured by name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSONCodecName:
		return NewJSONCodec(), nil
	case ProtoCodecName:
		return NewProtoCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec [%s]", name)
	}
}

func kindByName(name string) (Kind, bool) {
	for k, n := range Kind_name {
		if n == name {
			return k, true
		}
	}
	return 0, false
}
