package bdd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"BDDLabelServer/logger"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Index 文件名 -> 标注记录，构建后只读
type Index struct {
	records    map[string]*RawAnnotation
	duplicates []string
}

// indexKey 统一为 NFC，macOS 文件系统给出的 NFD 文件名也能匹配 labels 中的 NFC 名字
func indexKey(name string) string {
	return norm.NFC.String(name)
}

// BuildIndex 按文件顺序插入；name 重复时后者覆盖前者（已知行为，只记录不报错）
func BuildIndex(records []*RawAnnotation) *Index {
	ix := &Index{records: make(map[string]*RawAnnotation, len(records))}
	for _, r := range records {
		key := indexKey(r.FileName())
		if _, exists := ix.records[key]; exists {
			ix.duplicates = append(ix.duplicates, key)
		}
		ix.records[key] = r
	}
	if len(ix.duplicates) > 0 {
		logger.Log().Warn("duplicate names in labels, later records overwrite earlier ones",
			zap.Int("count", len(ix.duplicates)), zap.Strings("names", ix.duplicates))
	}
	return ix
}

func (ix *Index) Lookup(filename string) (*RawAnnotation, bool) {
	r, ok := ix.records[indexKey(filename)]
	return r, ok
}

func (ix *Index) Len() int {
	return len(ix.records)
}

// Duplicates 被覆盖过的文件名，按出现顺序
func (ix *Index) Duplicates() []string {
	return append([]string(nil), ix.duplicates...)
}

func (ix *Index) Names() []string {
	names := make([]string, 0, len(ix.records))
	for name := range ix.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseRecords 解析 labels 文件内容：必须是对象数组，且每个元素都有 name
func ParseRecords(data []byte) ([]*RawAnnotation, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &MalformedInputError{Index: -1, Reason: "labels must be a JSON array", Err: err}
	}
	records := make([]*RawAnnotation, 0, len(elems))
	for i, elem := range elems {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, &MalformedInputError{Index: i, Reason: "element is not a JSON object"}
		}
		r := &RawAnnotation{}
		if err := json.Unmarshal(trimmed, r); err != nil {
			return nil, &MalformedInputError{Index: i, Reason: err.Error(), Err: err}
		}
		if r.Name == nil {
			return nil, &MalformedInputError{Index: i, Reason: `missing "name" field`}
		}
		records = append(records, r)
	}
	return records, nil
}

// LoadIndex 读取 labels.json 并构建索引，任何格式错误都在产出样本之前返回
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	logger.Log().Info("Loaded BDD labels", zap.String("path", path), zap.Int("records", len(records)))
	return BuildIndex(records), nil
}

// WriteRecords 以 JSON 数组写出全部记录
func WriteRecords(path string, records []*RawAnnotation) error {
	if records == nil {
		records = []*RawAnnotation{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
