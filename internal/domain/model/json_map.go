package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap はjsonbカラムに入れる自由形式のmap。
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(v any) error {
	if v == nil {
		*m = nil
		return nil
	}
	switch b := v.(type) {
	case []byte:
		return json.Unmarshal(b, m)
	case string:
		return json.Unmarshal([]byte(b), m)
	default:
		return errors.New("jsonmap: unsupported scan type")
	}
}

// Merge は既存のblobに追記したコピーを返す。キー衝突は新しい値で上書き。
func (m JSONMap) Merge(other map[string]any) JSONMap {
	out := make(JSONMap, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
