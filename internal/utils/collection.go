package utils

import "sort"

func ContainsInt(list []int, n int) bool {
	for _, i := range list {
		if i == n {
			return true
		}
	}
	return false
}

func ContainsString(list []string, s string) bool {
	for _, i := range list {
		if i == s {
			return true
		}
	}
	return false
}

// SortedInts 返回去重排序后的副本，不修改原列表
func SortedInts(list []int) []int {
	set := make(map[int]struct{}, len(list))
	for _, i := range list {
		set[i] = struct{}{}
	}
	res := make([]int, 0, len(set))
	for i := range set {
		res = append(res, i)
	}
	sort.Ints(res)
	return res
}
