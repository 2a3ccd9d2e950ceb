package utils

func NumBits(n int) int {
	res := 0
	for n > 0 {
		res += n & 1
		n >>= 1
	}
	return res
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && NumBits(n) == 1
}
