package message

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// wireFile is the descriptor of wire.proto. Keep the two in sync: field numbers
// and types here are the wire format.
var wireFile protoreflect.FileDescriptor

func init() {
	var err error
	wireFile, err = protodesc.NewFile(wireFileProto(), nil)
	if err != nil {
		panic(err)
	}
}

func wireFileProto() *descriptorpb.FileDescriptorProto {
	const (
		u64   = descriptorpb.FieldDescriptorProto_TYPE_UINT64
		i64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
		s64   = descriptorpb.FieldDescriptorProto_TYPE_SINT64
		bytes = descriptorpb.FieldDescriptorProto_TYPE_BYTES
		msg   = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("wire.proto"),
		Package: proto.String("comm.wire"),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			wireMessageProto("Envelope",
				wireField("version", 1, u64, ""),
				wireField("kind", 2, u64, ""),
				wireField("timestamp", 3, i64, ""),
				wireField("body", 4, bytes, "")),
			wireMessageProto("Action",
				wireField("type", 1, i64, ""),
				wireField("extra", 2, s64, "")),
			wireMessageProto("FutureValue",
				wireField("kind", 1, u64, ""),
				wireField("action", 2, msg, "Action")),
			wireMessageProto("StateChange",
				wireField("state", 1, u64, "")),
			wireMessageProto("HoleCards",
				wireField("card1", 1, u64, ""),
				wireField("card2", 2, u64, "")),
			wireMessageProto("PublicCards",
				wireField("cards", 1, bytes, "")),
			wireMessageProto("Future",
				wireField("future_id", 1, bytes, ""),
				wireField("value", 2, msg, "FutureValue")),
			wireMessageProto("RequestClientActionFuture",
				wireField("future_id", 1, bytes, "")),
			wireMessageProto("ClientAction",
				wireField("user_id", 1, u64, ""),
				wireField("action", 2, msg, "Action")),
		},
	}
}

func wireMessageProto(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:  proto.String(name),
		Field: fields,
	}
}

func wireField(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(".comm.wire." + typeName)
	}
	return f
}

// wireMessage is one message of wire.proto, accessed by field name.
type wireMessage struct {
	protoreflect.Message
}

func newWire(name protoreflect.Name) wireMessage {
	return wireMessage{dynamicpb.NewMessage(wireFile.Messages().ByName(name))}
}

func (w wireMessage) field(name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := w.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic("wire: no field " + string(name) + " in " + string(w.Descriptor().Name()))
	}
	return fd
}

func (w wireMessage) setUint(name protoreflect.Name, v uint64) {
	w.Set(w.field(name), protoreflect.ValueOfUint64(v))
}

func (w wireMessage) setInt(name protoreflect.Name, v int64) {
	w.Set(w.field(name), protoreflect.ValueOfInt64(v))
}

func (w wireMessage) setBytes(name protoreflect.Name, v []byte) {
	w.Set(w.field(name), protoreflect.ValueOfBytes(v))
}

func (w wireMessage) setMessage(name protoreflect.Name, v wireMessage) {
	w.Set(w.field(name), protoreflect.ValueOfMessage(v.Message))
}

func (w wireMessage) has(name protoreflect.Name) bool {
	return w.Has(w.field(name))
}

func (w wireMessage) getUint(name protoreflect.Name) uint64 {
	return w.Get(w.field(name)).Uint()
}

func (w wireMessage) getInt(name protoreflect.Name) int64 {
	return w.Get(w.field(name)).Int()
}

func (w wireMessage) getBytes(name protoreflect.Name) []byte {
	return w.Get(w.field(name)).Bytes()
}

func (w wireMessage) getMessage(name protoreflect.Name) wireMessage {
	return wireMessage{w.Get(w.field(name)).Message()}
}

func (w wireMessage) marshal() ([]byte, error) {
	return proto.Marshal(w.Interface())
}

func (w wireMessage) unmarshal(data []byte) error {
	return proto.Unmarshal(data, w.Interface())
}
