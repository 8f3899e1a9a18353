package bdd

import (
	"bytes"
	"encoding/json"
	"fmt"

	iface "BDDLabelServer/interface"
)

// RawAttr 一个原始属性；Value 为 JSON 语义联合 bool | json.Number | string | nil | []any | map[string]any。
// 数值保留原始字面量，避免超出 float64 精度的整数在往返中被改写
type RawAttr struct {
	Name  string
	Value any
}

// RawAttributes 保持 JSON 对象键顺序的属性表
type RawAttributes []RawAttr

// Set 覆盖同名属性（保留首次出现的位置），否则追加
func (a *RawAttributes) Set(name string, value any) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, RawAttr{Name: name, Value: value})
}

func (a RawAttributes) Get(name string) (any, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

func (a *RawAttributes) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes must be a JSON object, got %v", tok)
	}
	out := RawAttributes{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected attribute key %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

func (a RawAttributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(attr.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalCBOR CBOR 没有有序对象，按普通 map 编码
func (a RawAttributes) MarshalCBOR() ([]byte, error) {
	m := make(map[string]any, len(a))
	for _, attr := range a {
		m[attr.Name] = cborValue(attr.Value)
	}
	return cborEncMode.Marshal(m)
}

// cborValue json.Number 按整数或浮点编码，不作为文本
func cborValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cborValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cborValue(e)
		}
		return out
	}
	return v
}

// Classify 根据原始值的类型构造带类型属性：
// bool -> Boolean，数值 -> Numeric，其余（字符串、null、列表、对象）一律字符串化为 Categorical。
// 这个兜底是有意保留的行为，不报错。
func Classify(name string, value any) iface.Attribute {
	switch v := value.(type) {
	case bool:
		return iface.BoolAttr(name, v)
	case float64:
		return iface.NumericAttr(name, v)
	case float32:
		return iface.NumericAttr(name, float64(v))
	case int:
		return iface.NumericAttr(name, float64(v))
	case int8:
		return iface.NumericAttr(name, float64(v))
	case int16:
		return iface.NumericAttr(name, float64(v))
	case int32:
		return iface.NumericAttr(name, float64(v))
	case int64:
		return iface.NumericAttr(name, float64(v))
	case uint:
		return iface.NumericAttr(name, float64(v))
	case uint8:
		return iface.NumericAttr(name, float64(v))
	case uint16:
		return iface.NumericAttr(name, float64(v))
	case uint32:
		return iface.NumericAttr(name, float64(v))
	case uint64:
		return iface.NumericAttr(name, float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return iface.NumericAttr(name, f)
		}
		return iface.CategoricalAttr(name, v.String())
	case string:
		return iface.CategoricalAttr(name, v)
	}
	return iface.CategoricalAttr(name, stringify(value))
}

func stringify(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(b)
}

// ClassifyAll 按输入顺序逐个分类
func ClassifyAll(attrs RawAttributes) []iface.Attribute {
	out := make([]iface.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, Classify(attr.Name, attr.Value))
	}
	return out
}

// flatten 将带类型属性还原为原始属性表，同名后者覆盖前者
func flatten(attrs []iface.Attribute) RawAttributes {
	out := make(RawAttributes, 0, len(attrs))
	for _, attr := range attrs {
		out.Set(attr.Name, attr.Value())
	}
	return out
}
