package grpcserver

import (
	"encoding/base64"
	"strconv"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Entries travel as Struct{key: "<decimal int64>", value: "<base64>"}.
// Keys are strings because Struct numbers cannot hold every int64.

func entryStruct(key int64, value []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"key":   structpb.NewStringValue(strconv.FormatInt(key, 10)),
		"value": structpb.NewStringValue(base64.StdEncoding.EncodeToString(value)),
	}}
}

func parseEntry(s *structpb.Struct) (int64, []byte, error) {
	f := s.GetFields()
	kv, ok := f["key"]
	if !ok {
		return 0, nil, errors.New("entry: missing key")
	}
	var key int64
	switch k := kv.GetKind().(type) {
	case *structpb.Value_StringValue:
		v, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, nil, errors.Wrap(err, "entry: key")
		}
		key = v
	case *structpb.Value_NumberValue:
		key = int64(k.NumberValue)
		if float64(key) != k.NumberValue {
			return 0, nil, errors.Newf("entry: key %v is not an integer", k.NumberValue)
		}
	default:
		return 0, nil, errors.New("entry: key must be a string or number")
	}
	value, err := base64.StdEncoding.DecodeString(f["value"].GetStringValue())
	if err != nil {
		return 0, nil, errors.Wrap(err, "entry: value")
	}
	return key, value, nil
}
