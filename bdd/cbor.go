package bdd

import "github.com/fxamacker/cbor/v2"

// 规范编码：map 键排序，输出稳定
var cborEncMode, _ = cbor.CanonicalEncOptions().EncMode()

// MarshalRecordsCBOR labels 数组的紧凑二进制形式，字段名与 JSON 相同
func MarshalRecordsCBOR(records []*RawAnnotation) ([]byte, error) {
	if records == nil {
		records = []*RawAnnotation{}
	}
	return cborEncMode.Marshal(records)
}
