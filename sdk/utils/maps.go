// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

// MergeConfig names, per field holding an array of maps, the key that identifies an element.
// For AEM metadata this is typically {"cq:tags": ""} (plain override) or {"renditions": "name"}.
type MergeConfig map[string]string

// MergeMaps returns map1 overlaid with map2. Nested maps merge recursively; arrays of maps
// listed in cfg merge element-wise by key; everything else is overwritten by map2.
// Neither input is modified.
func MergeMaps(map1, map2 map[string]interface{}, cfg MergeConfig) map[string]interface{} {
	result := make(map[string]interface{}, len(map1)+len(map2))
	for k, v := range map1 {
		result[k] = v
	}

	for k, v2 := range map2 {
		v1, exists := result[k]
		if !exists {
			result[k] = v2
			continue
		}

		m1, ok1 := v1.(map[string]interface{})
		m2, ok2 := v2.(map[string]interface{})
		if ok1 && ok2 {
			result[k] = MergeMaps(m1, m2, cfg)
			continue
		}

		a1, ok1 := v1.([]interface{})
		a2, ok2 := v2.([]interface{})
		if mergeKey, ok := cfg[k]; ok && mergeKey != "" && ok1 && ok2 && allMaps(a1) && allMaps(a2) {
			result[k] = mergeByKey(a1, a2, mergeKey, cfg)
			continue
		}

		result[k] = v2
	}
	return result
}

// mergeByKey keeps the order of arr1 and appends unmatched elements of arr2 in their order.
// Elements lacking the key are kept as they are.
func mergeByKey(arr1, arr2 []interface{}, key string, cfg MergeConfig) []interface{} {
	out := make([]interface{}, 0, len(arr1)+len(arr2))
	pos := make(map[interface{}]int)

	for _, item := range arr1 {
		m := item.(map[string]interface{})
		if id, ok := m[key]; ok && isComparable(id) {
			pos[id] = len(out)
		}
		out = append(out, m)
	}

	for _, item := range arr2 {
		m := item.(map[string]interface{})
		id, ok := m[key]
		if ok && isComparable(id) {
			if i, found := pos[id]; found {
				out[i] = MergeMaps(out[i].(map[string]interface{}), m, cfg)
				continue
			}
			pos[id] = len(out)
		}
		out = append(out, m)
	}
	return out
}

func allMaps(arr []interface{}) bool {
	for _, item := range arr {
		if _, ok := item.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}

func isComparable(v interface{}) bool {
	switch v.(type) {
	case string, float64, int, int64, bool:
		return true
	}
	return false
}
