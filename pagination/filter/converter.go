package filter

import "sort"

// Params 原始请求参数：参数名 -> 一个或多个取值
type Params map[string][]string

// Add 追加取值
func (p Params) Add(key string, values ...string) {
	p[key] = append(p[key], values...)
}

// Merge 合并另一组参数，相同键的取值按顺序追加
func (p Params) Merge(other Params) {
	for k, v := range other {
		p.Add(k, v...)
	}
}

// SortedKeys 按字典序返回参数名
func (p Params) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
